package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyService_CreateReply(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)

	reply, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "Use ser for identity."})
	require.NoError(t, err)
	assert.NotZero(t, reply.ID)
	assert.Nil(t, reply.ParentReplyID)
	assert.Equal(t, models.VoteNone, reply.Votes.CallerVote)

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RepliesCount)
	require.NotNil(t, got.LastReplyAt)
	require.NotNil(t, got.LastReplyByAuthorID)
	assert.Equal(t, student2.UserID, *got.LastReplyByAuthorID)

	ev := s.pub.Last(t)
	assert.Equal(t, models.EntityReply, ev.EntityType)
	assert.Equal(t, models.ChangeCreated, ev.ChangeKind)
	assert.Equal(t, topic.ID, ev.TopicID)
}

func TestReplyService_CreateReply_Nesting(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)

	top, err := s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "top"})
	require.NoError(t, err)

	child, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "child", ParentReplyID: uintPtr(top.ID)})
	require.NoError(t, err)
	require.NotNil(t, child.ParentReplyID)
	assert.Equal(t, top.ID, *child.ParentReplyID)

	grandchild, err := s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "deeper", ParentReplyID: uintPtr(child.ID)})
	require.NoError(t, err)
	require.NotNil(t, grandchild.ParentReplyID)
	assert.Equal(t, top.ID, *grandchild.ParentReplyID, "nested replies attach to the top-level parent")

	tree, err := s.replies.ListReplies(ctx, topic.ID, student, false)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Children, 2)

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RepliesCount)
}

func TestReplyService_CreateReply_Errors(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	locked := testutil.SeedTopic(t, s.db, student.UserID, testutil.Locked())
	other := testutil.SeedTopic(t, s.db, student.UserID)
	foreign := testutil.SeedReply(t, s.db, other.ID, student.UserID, 0, time.Now())

	_, err := s.replies.CreateReply(ctx, models.Caller{}, CreateReplyInput{TopicID: topic.ID, Content: "x"})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "  "})
	assertCode(t, err, models.CodeValidation)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: strings.Repeat("x", 10001)})
	assertCode(t, err, models.CodeValidation)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: 5150, Content: "x"})
	assertCode(t, err, models.CodeNotFound)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: locked.ID, Content: "x"})
	assertCode(t, err, models.CodeTopicLocked)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "x", ParentReplyID: uintPtr(foreign.ID)})
	assertCode(t, err, models.CodeValidation)

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "x", ParentReplyID: uintPtr(8080)})
	assertCode(t, err, models.CodeValidation)

	var count int64
	require.NoError(t, s.db.Model(&models.Reply{}).Where("topic_id IN ?", []uint{topic.ID, locked.ID}).Count(&count).Error)
	assert.Zero(t, count)

	got, err := s.store.Repositories().Topics.GetByID(ctx, locked.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepliesCount)
	assert.Empty(t, s.pub.Events())
}

func TestReplyService_UpdateReply(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	reply := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, time.Now())

	_, err := s.replies.UpdateReply(ctx, student, reply.ID, "not mine")
	assertCode(t, err, models.CodeForbidden)

	_, err = s.replies.UpdateReply(ctx, moderator, reply.ID, "moderators cannot edit either")
	assertCode(t, err, models.CodeForbidden)

	_, err = s.replies.UpdateReply(ctx, student2, reply.ID, "")
	assertCode(t, err, models.CodeValidation)

	updated, err := s.replies.UpdateReply(ctx, student2, reply.ID, "edited text")
	require.NoError(t, err)
	assert.Equal(t, "edited text", updated.Content)
	assert.True(t, updated.IsEdited)
	assert.Equal(t, models.ChangeUpdated, s.pub.Last(t).ChangeKind)

	_, err = s.replies.UpdateReply(ctx, student2, 6060, "x")
	assertCode(t, err, models.CodeNotFound)
}

func TestReplyService_MarkBestAnswer(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	other := testutil.SeedTopic(t, s.db, student2.UserID)
	first := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, time.Now())
	second := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, time.Now())

	_, err := s.replies.MarkBestAnswer(ctx, student2, first.ID, topic.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = s.replies.MarkBestAnswer(ctx, student, first.ID, other.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = s.replies.MarkBestAnswer(ctx, student, 4040, topic.ID)
	assertCode(t, err, models.CodeNotFound)

	marked, err := s.replies.MarkBestAnswer(ctx, student, first.ID, topic.ID)
	require.NoError(t, err)
	assert.True(t, marked.IsBestAnswer)
	ev := s.pub.Last(t)
	assert.Equal(t, models.ActionBestAnswer, ev.Action)
	assert.Equal(t, models.ChangeUpdated, ev.ChangeKind)

	_, err = s.replies.MarkBestAnswer(ctx, moderator, second.ID, topic.ID)
	require.NoError(t, err)

	tree, err := s.replies.ListReplies(ctx, topic.ID, student, false)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.True(t, tree[0].IsBestAnswer)
	assert.True(t, tree[1].IsBestAnswer, "marking a best answer does not clear others")
}

func TestReplyService_CreateReply_DeletedTopLevelParent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)

	root, err := s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "root"})
	require.NoError(t, err)
	child, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "child", ParentReplyID: uintPtr(root.ID)})
	require.NoError(t, err)
	require.NoError(t, s.replies.DeleteReply(ctx, moderator, root.ID))
	published := len(s.pub.Events())

	_, err = s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "late", ParentReplyID: uintPtr(child.ID)})
	assertCode(t, err, models.CodeValidation)

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RepliesCount)
	assert.Len(t, s.pub.Events(), published)

	var rows int64
	require.NoError(t, s.db.Model(&models.Reply{}).Where("topic_id = ?", topic.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestReplyService_DeleteReply(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)

	mine, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "a"})
	require.NoError(t, err)
	theirs, err := s.replies.CreateReply(ctx, student, CreateReplyInput{TopicID: topic.ID, Content: "b"})
	require.NoError(t, err)

	assertCode(t, s.replies.DeleteReply(ctx, student2, theirs.ID), models.CodeForbidden)

	require.NoError(t, s.replies.DeleteReply(ctx, student2, mine.ID))
	require.NoError(t, s.replies.DeleteReply(ctx, moderator, theirs.ID))

	ev := s.pub.Last(t)
	assert.Equal(t, models.ChangeDeleted, ev.ChangeKind)
	assert.Equal(t, theirs.ID, ev.EntityID)
	assert.Equal(t, topic.ID, ev.TopicID)

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepliesCount)
	assert.NotNil(t, got.LastReplyAt, "last reply fields are never cleared")

	assertCode(t, s.replies.DeleteReply(ctx, student2, mine.ID), models.CodeNotFound)
}

func TestReplyService_DeleteReply_CounterFloorsAtZero(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	reply := testutil.SeedReply(t, s.db, topic.ID, student.UserID, 0, time.Now())

	require.NoError(t, s.replies.DeleteReply(ctx, student, reply.ID))

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepliesCount)
}

func TestReplyService_DeleteReply_OrphanedByTopicDelete(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	reply, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "a"})
	require.NoError(t, err)

	require.NoError(t, s.topics.DeleteTopic(ctx, student, topic.ID))
	require.NoError(t, s.replies.DeleteReply(ctx, student2, reply.ID))
}

func TestReplyService_ListReplies_Hidden(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	base := time.Now().Add(-time.Hour)
	visible := testutil.SeedReply(t, s.db, topic.ID, student.UserID, 0, base)
	hidden := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, base.Add(time.Minute))
	require.NoError(t, s.db.Model(hidden).Update("is_moderated", true).Error)

	tree, err := s.replies.ListReplies(ctx, topic.ID, student, true)
	require.NoError(t, err)
	require.Len(t, tree, 1, "students never see hidden replies")
	assert.Equal(t, visible.ID, tree[0].ID)

	tree, err = s.replies.ListReplies(ctx, topic.ID, moderator, false)
	require.NoError(t, err)
	assert.Len(t, tree, 1)

	tree, err = s.replies.ListReplies(ctx, topic.ID, moderator, true)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.True(t, tree[1].IsModerated)

	_, err = s.replies.ListReplies(ctx, 9000, moderator, true)
	assertCode(t, err, models.CodeNotFound)
}
