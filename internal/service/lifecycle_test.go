package service

import (
	"context"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumLifecycle(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	topic, err := s.topics.CreateTopic(ctx, student, CreateTopicInput{
		Title:    "Grammar question",
		Content:  "When do I use the subjunctive after espero que?",
		Category: models.CategoryGrammar,
	})
	require.NoError(t, err)

	r1, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "Always, it expresses a wish."})
	require.NoError(t, err)

	best, err := s.replies.MarkBestAnswer(ctx, student, r1.ID, topic.ID)
	require.NoError(t, err)
	assert.True(t, best.IsBestAnswer)

	target := models.TopicTarget(topic.ID)
	state, err := s.votes.CastVote(ctx, student2.UserID, target, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteState{Upvotes: 1, Downvotes: 0, CallerVote: models.VoteUp}, *state)
	state, err = s.votes.CastVote(ctx, student2.UserID, target, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteState{Upvotes: 0, Downvotes: 0, CallerVote: models.VoteNone}, *state)

	detail, err := s.topics.GetTopicDetail(ctx, topic.ID, student2.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Grammar question", detail.Topic.Title)
	assert.Equal(t, 1, detail.Topic.RepliesCount)
	assert.Equal(t, models.VoteSummary{Upvotes: 0, Downvotes: 0, CallerVote: models.VoteNone}, detail.Topic.Votes)
	require.Len(t, detail.Replies, 1)
	assert.Equal(t, r1.ID, detail.Replies[0].ID)
	assert.True(t, detail.Replies[0].IsBestAnswer)

	kinds := make([]models.ChangeKind, 0)
	for _, ev := range s.pub.Events() {
		kinds = append(kinds, ev.ChangeKind)
	}
	assert.Equal(t, []models.ChangeKind{models.ChangeCreated, models.ChangeCreated, models.ChangeUpdated, models.ChangeUpdated, models.ChangeUpdated}, kinds)
}
