// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteDB opens a fresh in-memory database with the forum schema. The
// pool is pinned to one connection because every ":memory:" connection is a
// separate database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(DiscardLogger()))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// TopicOption customizes a seeded topic.
type TopicOption func(*models.Topic)

// SeedTopic inserts a topic by authorID with sensible defaults.
func SeedTopic(t *testing.T, db *gorm.DB, authorID uint, opts ...TopicOption) *models.Topic {
	t.Helper()
	topic := &models.Topic{
		Title:    "How do I use the subjunctive?",
		Content:  "I keep mixing it up with the indicative.",
		Category: models.CategoryGrammar,
		Status:   models.TopicStatusOpen,
		AuthorID: authorID,
		Tags:     []string{},
	}
	for _, opt := range opts {
		opt(topic)
	}
	require.NoError(t, db.Create(topic).Error)
	return topic
}

// WithTitle sets the topic title.
func WithTitle(title string) TopicOption {
	return func(t *models.Topic) { t.Title = title }
}

// WithCategory sets the topic category.
func WithCategory(c models.Category) TopicOption {
	return func(t *models.Topic) { t.Category = c }
}

// WithTags sets the topic tags.
func WithTags(tags ...string) TopicOption {
	return func(t *models.Topic) { t.Tags = tags }
}

// Locked marks the topic locked.
func Locked() TopicOption {
	return func(t *models.Topic) { t.IsLocked = true }
}

// SeedReply inserts a reply to topicID, nested under parentID when non-zero.
// It does not touch the topic counters.
func SeedReply(t *testing.T, db *gorm.DB, topicID, authorID, parentID uint, createdAt time.Time) *models.Reply {
	t.Helper()
	reply := &models.Reply{
		Content:   "Try thinking of it as a mood, not a tense.",
		TopicID:   topicID,
		AuthorID:  authorID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if parentID != 0 {
		reply.ParentReplyID = &parentID
	}
	require.NoError(t, db.Create(reply).Error)
	return reply
}

// SeedProfile inserts an author profile.
func SeedProfile(t *testing.T, db *gorm.DB, profile models.AuthorProfile) {
	t.Helper()
	require.NoError(t, db.Create(&profile).Error)
}
