package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"agora/internal/listing"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	return gormDB, mock
}

func TestTopicRepository_GetForUpdateLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTopicRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "topics" WHERE "topics"."id" = $1 AND "topics"."deleted_at" IS NULL ORDER BY "topics"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(5, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_locked"}).AddRow(5, "Locked?", true))

	topic, err := repo.GetForUpdate(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, topic.IsLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	topic := &models.Topic{
		Title:    "Phrasal verbs",
		Content:  "When is it 'put up with'?",
		Category: models.CategoryVocabulary,
		Status:   models.TopicStatusOpen,
		AuthorID: 3,
		Tags:     []string{"verbs", "idioms"},
	}
	require.NoError(t, repo.Create(ctx, topic))
	require.NotZero(t, topic.ID)

	got, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"verbs", "idioms"}, got.Tags)
	assert.Equal(t, models.CategoryVocabulary, got.Category)
	assert.Zero(t, got.Votes.Upvotes)
	assert.Nil(t, got.LastReplyAt)

	_, err = repo.GetByID(ctx, topic.ID+100)
	assert.True(t, IsNotFound(err))
}

func TestTopicRepository_ListFiltersCategory(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	testutil.SeedTopic(t, db, 1, testutil.WithCategory(models.CategoryGrammar))
	testutil.SeedTopic(t, db, 1, testutil.WithCategory(models.CategoryCulture))
	deleted := testutil.SeedTopic(t, db, 1, testutil.WithCategory(models.CategoryGrammar))
	require.NoError(t, repo.Delete(ctx, deleted.ID))

	all, err := repo.List(ctx, TopicQuery{Category: models.CategoryAll})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	grammar, err := repo.List(ctx, TopicQuery{Category: models.CategoryGrammar})
	require.NoError(t, err)
	require.Len(t, grammar, 1)
	assert.Equal(t, models.CategoryGrammar, grammar[0].Category)
}

// seedListingTopics inserts topics whose sort keys tie in several ways.
func seedListingTopics(t *testing.T, db *gorm.DB) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		title    string
		content  string
		category models.Category
		tags     []string
		up, down int
		replies  int
		views    int
		pinned   bool
		age      time.Duration
	}{
		{"Subjunctive after espero", "Espero que venga", models.CategoryGrammar, []string{"Subjunctive"}, 3, 0, 2, 10, false, time.Hour},
		{"100% sure about ser/estar?", "Always mix them up", models.CategoryGrammar, []string{"ser_estar"}, 1, 1, 5, 40, false, 2 * time.Hour},
		{"Idioms from Mexico", "Qué padre", models.CategoryCulture, []string{"idioms", "mexico"}, 3, 0, 0, 40, true, 3 * time.Hour},
		{"Homework help", "Ex. 4 of unit_2", models.CategoryHomework, nil, 0, 2, 5, 3, false, time.Hour},
		{"False friends", "embarazada is not embarrassed", models.CategoryVocabulary, []string{"false-friends"}, 5, 1, 1, 7, false, 4 * time.Hour},
		{"Ordering at a bar", "Una caña, por favor", models.CategoryConversation, []string{"bar"}, 0, 0, 0, 0, true, 30 * time.Minute},
	}
	for _, r := range rows {
		tags := r.tags
		if tags == nil {
			tags = []string{}
		}
		at := base.Add(-r.age)
		topic := &models.Topic{
			Title: r.title, Content: r.content, Category: r.category, Status: models.TopicStatusOpen,
			AuthorID: 1, Tags: tags, RepliesCount: r.replies, ViewsCount: r.views, IsPinned: r.pinned,
			Votes: models.VoteSummary{Upvotes: r.up, Downvotes: r.down}, CreatedAt: at, UpdatedAt: at,
		}
		require.NoError(t, db.Create(topic).Error)
	}
}

func TestTopicRepository_ListMatchesListingOrder(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()
	seedListingTopics(t, db)

	var everything []*models.Topic
	require.NoError(t, db.Find(&everything).Error)

	ids := func(topics []*models.Topic) []uint {
		out := make([]uint, 0, len(topics))
		for _, topic := range topics {
			out = append(out, topic.ID)
		}
		return out
	}

	searches := []string{"", "IDIOMS", "subjunctive", "100%", "unit_2", "ser_estar", "ser", "nothing-here", "a"}
	categories := []models.Category{"", models.CategoryGrammar}
	keys := []listing.SortKey{listing.SortRecent, listing.SortPopular, listing.SortReplies, listing.SortViews}
	pages := [][2]int{{0, 0}, {2, 0}, {2, 1}, {3, 4}}

	for _, key := range keys {
		for _, category := range categories {
			for _, search := range searches {
				for _, page := range pages {
					expected := listing.Filter(append([]*models.Topic(nil), everything...), category, search)
					listing.Sort(expected, key)
					expected = listing.Page(expected, page[0], page[1])

					got, err := repo.List(ctx, TopicQuery{Category: category, Search: search, Sort: key, Limit: page[0], Offset: page[1]})
					require.NoError(t, err)
					assert.Equal(t, ids(expected), ids(got), "sort=%s category=%q search=%q page=%v", key, category, search, page)
				}
			}
		}
	}
}

func TestTopicRepository_ListTagMatchIsExact(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	tagged := testutil.SeedTopic(t, db, 1, testutil.WithTitle("Question"), testutil.WithTags("Mood", "verbs"))
	testutil.SeedTopic(t, db, 1, testutil.WithTitle("Another"), testutil.WithTags("moody"))

	got, err := repo.List(ctx, TopicQuery{Search: "mood"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tagged.ID, got[0].ID)

	got, err = repo.List(ctx, TopicQuery{Search: "mood%"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTopicRepository_UpdateRefreshesUpdatedAtAndEncodesTags(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	old := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, db.Model(topic).UpdateColumn("updated_at", old).Error)

	err := repo.Update(ctx, topic.ID, map[string]interface{}{
		"title": "Renamed",
		"tags":  []string{"mood"},
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"mood"}, got.Tags)
	assert.True(t, got.UpdatedAt.After(old))

	assert.True(t, IsNotFound(repo.Update(ctx, 999, map[string]interface{}{"title": "x"})))
}

func TestTopicRepository_Counters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	before, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)

	require.NoError(t, repo.IncrementViews(ctx, topic.ID))
	require.NoError(t, repo.IncrementViews(ctx, topic.ID))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.OnReplyCreated(ctx, topic.ID, 9, at))
	require.NoError(t, repo.OnReplyCreated(ctx, topic.ID, 10, at))
	require.NoError(t, repo.OnReplyDeleted(ctx, topic.ID))

	got, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewsCount)
	assert.Equal(t, 1, got.RepliesCount)
	require.NotNil(t, got.LastReplyByAuthorID)
	assert.Equal(t, uint(10), *got.LastReplyByAuthorID)
	require.NotNil(t, got.LastReplyAt)
	assert.True(t, got.LastReplyAt.Equal(at))
	assert.True(t, got.UpdatedAt.Equal(before.UpdatedAt), "reply bookkeeping must not touch updated_at")

	// Floors at zero.
	require.NoError(t, repo.OnReplyDeleted(ctx, topic.ID))
	require.NoError(t, repo.OnReplyDeleted(ctx, topic.ID))
	got, err = repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RepliesCount)

	assert.True(t, IsNotFound(repo.IncrementViews(ctx, 999)))
}

func TestTopicRepository_AdjustVotesFloorsAtZero(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)
	require.NoError(t, repo.AdjustVotes(ctx, topic.ID, 2, 1))
	require.NoError(t, repo.AdjustVotes(ctx, topic.ID, -1, -5))

	got, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Votes.Upvotes)
	assert.Equal(t, 0, got.Votes.Downvotes)
}

func TestTopicRepository_Toggles(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTopicRepository(db)
	ctx := context.Background()

	topic := testutil.SeedTopic(t, db, 1)

	require.NoError(t, repo.TogglePinned(ctx, topic.ID))
	require.NoError(t, repo.ToggleLocked(ctx, topic.ID))
	got, err := repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPinned)
	assert.True(t, got.IsLocked)

	require.NoError(t, repo.TogglePinned(ctx, topic.ID))
	got, err = repo.GetByID(ctx, topic.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPinned)
	assert.True(t, got.IsLocked)

	assert.True(t, IsNotFound(repo.ToggleLocked(ctx, 999)))
}
