package service

import (
	"context"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ModerationService holds the moderator-only toggles. Toggles are single
// atomic statements; racing moderators resolve as last write wins.
type ModerationService struct {
	store     repository.Store
	topics    *TopicService
	replies   *ReplyService
	publisher Publisher
	logger    *slog.Logger
}

func NewModerationService(
	store repository.Store,
	topics *TopicService,
	replies *ReplyService,
	publisher Publisher,
	logger *slog.Logger,
) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		store:     store,
		topics:    topics,
		replies:   replies,
		publisher: publisherOrNop(publisher),
		logger:    logger,
	}
}

func requireModerator(caller models.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.IsModerator() {
		return models.NewForbiddenError("Moderator role required")
	}
	return nil
}

// TogglePin flips the topic's pinned flag.
func (s *ModerationService) TogglePin(ctx context.Context, caller models.Caller, topicID uint) (*models.Topic, error) {
	return s.toggleTopic(ctx, caller, topicID, "TogglePin", func(ctx context.Context, repos repository.Repositories) error {
		return repos.Topics.TogglePinned(ctx, topicID)
	}, func(t *models.Topic) string {
		if t.IsPinned {
			return models.ActionPinned
		}
		return models.ActionUnpinned
	})
}

// ToggleLock flips the topic's locked flag. A locked topic rejects new
// replies; existing replies are untouched.
func (s *ModerationService) ToggleLock(ctx context.Context, caller models.Caller, topicID uint) (*models.Topic, error) {
	return s.toggleTopic(ctx, caller, topicID, "ToggleLock", func(ctx context.Context, repos repository.Repositories) error {
		return repos.Topics.ToggleLocked(ctx, topicID)
	}, func(t *models.Topic) string {
		if t.IsLocked {
			return models.ActionLocked
		}
		return models.ActionUnlocked
	})
}

func (s *ModerationService) toggleTopic(
	ctx context.Context,
	caller models.Caller,
	topicID uint,
	method string,
	toggle func(context.Context, repository.Repositories) error,
	action func(*models.Topic) string,
) (topic *models.Topic, err error) {
	if err := requireModerator(caller); err != nil {
		return nil, err
	}

	ctx, finish := observability.StartOperation(ctx, "ModerationService", method, attribute.Int64("topic.id", int64(topicID)))
	defer finish(&err)

	repos := s.store.Repositories()
	if err := toggle(ctx, repos); err != nil {
		return nil, classifyStorageError(err, "topic", topicID)
	}
	topic, err = repos.Topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, classifyStorageError(err, "topic", topicID)
	}

	act := action(topic)
	observability.ModerationActions.WithLabelValues(act).Inc()
	s.logger.InfoContext(ctx, "moderation action",
		slog.String("action", act),
		slog.Uint64("topic_id", uint64(topicID)),
		slog.Uint64("moderator_id", uint64(caller.UserID)),
	)
	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityTopic, topicID, topicID, models.ChangeModerated, act, caller.UserID))

	if s.topics != nil {
		if err := s.topics.decorate(ctx, caller.UserID, topic); err != nil {
			return nil, err
		}
	}
	return topic, nil
}

// SetReplyHidden hides a reply from the default view, or shows it again.
func (s *ModerationService) SetReplyHidden(ctx context.Context, caller models.Caller, replyID uint, hidden bool) (reply *models.Reply, err error) {
	if err := requireModerator(caller); err != nil {
		return nil, err
	}

	ctx, finish := observability.StartOperation(ctx, "ModerationService", "SetReplyHidden", attribute.Int64("reply.id", int64(replyID)))
	defer finish(&err)

	repos := s.store.Repositories()
	if err := repos.Replies.Update(ctx, replyID, map[string]interface{}{"is_moderated": hidden}); err != nil {
		return nil, classifyStorageError(err, "reply", replyID)
	}
	reply, err = repos.Replies.GetByID(ctx, replyID)
	if err != nil {
		return nil, classifyStorageError(err, "reply", replyID)
	}

	act := models.ActionUnhidden
	if hidden {
		act = models.ActionHidden
	}
	observability.ModerationActions.WithLabelValues(act).Inc()
	s.logger.InfoContext(ctx, "moderation action",
		slog.String("action", act),
		slog.Uint64("reply_id", uint64(replyID)),
		slog.Uint64("moderator_id", uint64(caller.UserID)),
	)
	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityReply, replyID, reply.TopicID, models.ChangeModerated, act, caller.UserID))

	if s.replies != nil {
		return s.replies.decorated(ctx, caller.UserID, reply)
	}
	return reply, nil
}
