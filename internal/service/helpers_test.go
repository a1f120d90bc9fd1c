package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	student   = models.Caller{UserID: 1, DisplayName: "Ana", Role: models.RoleStudent}
	student2  = models.Caller{UserID: 2, DisplayName: "Bo", Role: models.RoleStudent}
	moderator = models.Caller{UserID: 9, DisplayName: "Prof", Role: models.RoleTeacher}
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []models.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChangeEvent(nil), p.events...)
}

func (p *recordingPublisher) Last(t *testing.T) models.ChangeEvent {
	t.Helper()
	events := p.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

type services struct {
	db         *gorm.DB
	store      repository.Store
	pub        *recordingPublisher
	votes      *VoteService
	topics     *TopicService
	replies    *ReplyService
	moderation *ModerationService
}

func newServices(t *testing.T) *services {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	store := repository.NewStore(db)
	pub := &recordingPublisher{}
	logger := testutil.DiscardLogger()

	profiles := NewProfileDirectory(repository.NewProfileRepository(db, logger), cache.NewJSONCache(nil), 0, logger)
	votes := NewVoteService(store, pub, DefaultVoteMaxRetries, logger)
	topics := NewTopicService(store, votes, profiles, pub, logger)
	replies := NewReplyService(store, votes, profiles, pub, logger)
	return &services{
		db:         db,
		store:      store,
		pub:        pub,
		votes:      votes,
		topics:     topics,
		replies:    replies,
		moderation: NewModerationService(store, topics, replies, pub, logger),
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func uintPtr(v uint) *uint { return &v }
