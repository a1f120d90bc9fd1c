package repository

import (
	"context"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyRepository_ListByTopic(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReplyRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	other := testutil.SeedTopic(t, db, 1)
	base := time.Now().Add(-time.Hour)

	second := testutil.SeedReply(t, db, topic.ID, 2, 0, base.Add(2*time.Minute))
	first := testutil.SeedReply(t, db, topic.ID, 3, 0, base)
	hidden := testutil.SeedReply(t, db, topic.ID, 4, 0, base.Add(time.Minute))
	require.NoError(t, repo.Update(ctx, hidden.ID, map[string]interface{}{"is_moderated": true}))
	testutil.SeedReply(t, db, other.ID, 2, 0, base)

	visible, err := repo.ListByTopic(ctx, topic.ID, false)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, first.ID, visible[0].ID)
	assert.Equal(t, second.ID, visible[1].ID)

	everything, err := repo.ListByTopic(ctx, topic.ID, true)
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestReplyRepository_DeleteIsSoft(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReplyRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	reply := testutil.SeedReply(t, db, topic.ID, 2, 0, time.Now())

	require.NoError(t, repo.Delete(ctx, reply.ID))
	_, err := repo.GetByID(ctx, reply.ID)
	assert.True(t, IsNotFound(err))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Reply{}).Where("id = ?", reply.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.True(t, IsNotFound(repo.Delete(ctx, reply.ID)))
}

func TestReplyRepository_AdjustVotes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReplyRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	reply := testutil.SeedReply(t, db, topic.ID, 2, 0, time.Now())

	require.NoError(t, repo.AdjustVotes(ctx, reply.ID, 1, 0))
	require.NoError(t, repo.AdjustVotes(ctx, reply.ID, -1, 1))

	got, err := repo.GetForUpdate(ctx, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Votes.Upvotes)
	assert.Equal(t, 1, got.Votes.Downvotes)
}
