package seed

import (
	"context"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSeed_CountersMatchLedger(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	res, err := Seed(context.Background(), db, Options{
		NumUsers:           5,
		NumTopics:          6,
		MaxRepliesPerTopic: 5,
		VotePercent:        50,
		RandSeed:           42,
		Logger:             testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Profiles)
	assert.Equal(t, 6, res.Topics)

	var topics []models.Topic
	require.NoError(t, db.Find(&topics).Error)
	require.Len(t, topics, 6)

	totalReplies := 0
	for _, topic := range topics {
		var replies []models.Reply
		require.NoError(t, db.Where("topic_id = ?", topic.ID).Find(&replies).Error)
		assert.Equal(t, len(replies), topic.RepliesCount, "topic %d", topic.ID)
		totalReplies += len(replies)

		byID := make(map[uint]models.Reply, len(replies))
		for _, r := range replies {
			byID[r.ID] = r
		}
		for _, r := range replies {
			if r.ParentReplyID == nil {
				continue
			}
			parent, ok := byID[*r.ParentReplyID]
			require.True(t, ok, "parent in same topic")
			assert.Nil(t, parent.ParentReplyID, "threads are one level deep")
		}

		assertVotes(t, db, models.TopicTarget(topic.ID), topic.Votes)
		for _, r := range replies {
			assertVotes(t, db, models.ReplyTarget(r.ID), r.Votes)
		}
	}
	assert.Equal(t, res.Replies, totalReplies)

	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&votes).Error)
	assert.Equal(t, int64(res.Votes), votes)
}

func assertVotes(t *testing.T, db *gorm.DB, target models.VoteTarget, got models.VoteSummary) {
	t.Helper()
	column := "reply_id"
	if target.Kind() == models.TargetTopic {
		column = "topic_id"
	}
	var up, down int64
	require.NoError(t, db.Model(&models.Vote{}).Where(column+" = ? AND vote_type = ?", target.ID(), models.VoteUp).Count(&up).Error)
	require.NoError(t, db.Model(&models.Vote{}).Where(column+" = ? AND vote_type = ?", target.ID(), models.VoteDown).Count(&down).Error)
	assert.Equal(t, int(up), got.Upvotes, "%s %d upvotes", target.Kind(), target.ID())
	assert.Equal(t, int(down), got.Downvotes, "%s %d downvotes", target.Kind(), target.ID())
}

func TestSeed_Clean(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := Options{NumUsers: 3, NumTopics: 2, MaxRepliesPerTopic: 2, VotePercent: 100, RandSeed: 7, Logger: testutil.DiscardLogger()}

	_, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	// A second run without cleaning collides on profile IDs.
	_, err = Seed(context.Background(), db, opts)
	require.Error(t, err)

	opts.ShouldClean = true
	res, err := Seed(context.Background(), db, opts)
	require.NoError(t, err)

	var topics int64
	require.NoError(t, db.Model(&models.Topic{}).Count(&topics).Error)
	assert.Equal(t, int64(res.Topics), topics)

	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&votes).Error)
	assert.Equal(t, int64(res.Votes), votes)
}

func TestSeed_RequiresUsers(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, err := Seed(context.Background(), db, Options{NumTopics: 1})
	assert.Error(t, err)
}

func TestFactory_CreateReplyAnchorsToTopLevel(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	f := NewFactory(db, 1)

	topic, err := f.CreateTopic(1, func(tp *models.Topic) { tp.Tags = []string{"idioms"} })
	require.NoError(t, err)
	root, err := f.CreateReply(topic, 2, nil)
	require.NoError(t, err)
	child, err := f.CreateReply(topic, 3, root)
	require.NoError(t, err)
	grandchild, err := f.CreateReply(topic, 2, child)
	require.NoError(t, err)

	require.NotNil(t, grandchild.ParentReplyID)
	assert.Equal(t, root.ID, *grandchild.ParentReplyID)
	assert.False(t, grandchild.CreatedAt.Before(child.CreatedAt))

	var stored models.Topic
	require.NoError(t, db.First(&stored, topic.ID).Error)
	assert.Equal(t, 3, stored.RepliesCount)
	require.NotNil(t, stored.LastReplyByAuthorID)
	assert.Equal(t, uint(2), *stored.LastReplyByAuthorID)
	assert.Equal(t, []string{"idioms"}, stored.Tags)

	other, err := f.CreateTopic(1)
	require.NoError(t, err)
	_, err = f.CreateReply(other, 2, root)
	assert.Error(t, err)
}

func TestFactory_CreateVoteRejectsBadInput(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	f := NewFactory(db, 1)
	topic, err := f.CreateTopic(1)
	require.NoError(t, err)

	assert.Error(t, f.CreateVote(2, models.VoteTarget{}, models.VoteUp))
	assert.Error(t, f.CreateVote(2, models.TopicTarget(topic.ID), models.VoteNone))
	require.NoError(t, f.CreateVote(2, models.TopicTarget(topic.ID), models.VoteDown))

	var stored models.Topic
	require.NoError(t, db.First(&stored, topic.ID).Error)
	assert.Equal(t, 1, stored.Votes.Downvotes)
}
