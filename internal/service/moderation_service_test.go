package service

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationService_RequiresModerator(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	reply := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, time.Now())

	_, err := s.moderation.TogglePin(ctx, student, topic.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = s.moderation.ToggleLock(ctx, student, topic.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = s.moderation.SetReplyHidden(ctx, student, reply.ID, true)
	assertCode(t, err, models.CodeForbidden)

	_, err = s.moderation.TogglePin(ctx, models.Caller{}, topic.ID)
	assertCode(t, err, models.CodeUnauthorized)

	got, err := s.store.Repositories().Topics.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPinned)
	assert.False(t, got.IsLocked)
	assert.Empty(t, s.pub.Events())
}

func TestModerationService_TogglePin(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)

	pinned, err := s.moderation.TogglePin(ctx, moderator, topic.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	ev := s.pub.Last(t)
	assert.Equal(t, models.ChangeModerated, ev.ChangeKind)
	assert.Equal(t, models.ActionPinned, ev.Action)
	assert.Equal(t, moderator.UserID, ev.ActorID)

	master := models.Caller{UserID: 77, Role: models.RoleMaster}
	unpinned, err := s.moderation.TogglePin(ctx, master, topic.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)
	assert.Equal(t, models.ActionUnpinned, s.pub.Last(t).Action)

	_, err = s.moderation.TogglePin(ctx, moderator, 123456)
	assertCode(t, err, models.CodeNotFound)
}

func TestModerationService_ToggleLock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	existing, err := s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "before lock"})
	require.NoError(t, err)

	locked, err := s.moderation.ToggleLock(ctx, moderator, topic.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)
	assert.Equal(t, models.ActionLocked, s.pub.Last(t).Action)

	_, err = s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "after lock"})
	assertCode(t, err, models.CodeTopicLocked)

	_, err = s.replies.UpdateReply(ctx, student2, existing.ID, "edits still allowed")
	require.NoError(t, err)

	unlocked, err := s.moderation.ToggleLock(ctx, moderator, topic.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)
	assert.Equal(t, models.ActionUnlocked, s.pub.Last(t).Action)

	_, err = s.replies.CreateReply(ctx, student2, CreateReplyInput{TopicID: topic.ID, Content: "after unlock"})
	require.NoError(t, err)
}

func TestModerationService_SetReplyHidden(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	topic := testutil.SeedTopic(t, s.db, student.UserID)
	reply := testutil.SeedReply(t, s.db, topic.ID, student2.UserID, 0, time.Now())

	hidden, err := s.moderation.SetReplyHidden(ctx, moderator, reply.ID, true)
	require.NoError(t, err)
	assert.True(t, hidden.IsModerated)
	ev := s.pub.Last(t)
	assert.Equal(t, models.ActionHidden, ev.Action)
	assert.Equal(t, topic.ID, ev.TopicID)

	tree, err := s.replies.ListReplies(ctx, topic.ID, student, false)
	require.NoError(t, err)
	assert.Empty(t, tree)

	shown, err := s.moderation.SetReplyHidden(ctx, moderator, reply.ID, false)
	require.NoError(t, err)
	assert.False(t, shown.IsModerated)
	assert.Equal(t, models.ActionUnhidden, s.pub.Last(t).Action)

	_, err = s.moderation.SetReplyHidden(ctx, moderator, 999, true)
	assertCode(t, err, models.CodeNotFound)
}
