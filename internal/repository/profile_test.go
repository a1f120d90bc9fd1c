package repository

import (
	"context"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_GetByUserIDs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, testutil.DiscardLogger())
	ctx := context.Background()

	testutil.SeedProfile(t, db, models.AuthorProfile{UserID: 1, DisplayName: "Ada", PostsCount: 4, Badges: []string{"mentor"}})
	testutil.SeedProfile(t, db, models.AuthorProfile{UserID: 2, DisplayName: "Grace"})

	profiles, err := repo.GetByUserIDs(ctx, []uint{1, 3})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ada", profiles[0].DisplayName)
	assert.Equal(t, []string{"mentor"}, profiles[0].Badges)

	none, err := repo.GetByUserIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProfileRepository_MissingTableIsEmpty(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.AuthorProfile{}))

	repo := NewProfileRepository(db, testutil.DiscardLogger())
	profiles, err := repo.GetByUserIDs(context.Background(), []uint{1})
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
