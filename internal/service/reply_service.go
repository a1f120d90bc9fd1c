package service

import (
	"context"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/thread"
	"agora/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type ReplyService struct {
	store     repository.Store
	votes     *VoteService
	profiles  ProfileLookup
	publisher Publisher
	logger    *slog.Logger
}

type CreateReplyInput struct {
	TopicID       uint
	Content       string
	ParentReplyID *uint
}

func NewReplyService(
	store repository.Store,
	votes *VoteService,
	profiles ProfileLookup,
	publisher Publisher,
	logger *slog.Logger,
) *ReplyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyService{
		store:     store,
		votes:     votes,
		profiles:  profiles,
		publisher: publisherOrNop(publisher),
		logger:    logger,
	}
}

// CreateReply adds a reply to an unlocked topic. A reply to a nested reply
// is attached to that reply's top-level parent so threads stay two deep.
func (s *ReplyService) CreateReply(ctx context.Context, caller models.Caller, in CreateReplyInput) (reply *models.Reply, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validation.ValidateContent(in.Content, validation.MaxReplyContentLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx, finish := observability.StartOperation(ctx, "ReplyService", "CreateReply", attribute.Int64("topic.id", int64(in.TopicID)))
	defer finish(&err)

	err = s.store.Transaction(ctx, "reply_create", func(repos repository.Repositories) error {
		topic, err := repos.Topics.GetForUpdate(ctx, in.TopicID)
		if err != nil {
			return classifyStorageError(err, "topic", in.TopicID)
		}
		if topic.IsLocked {
			return models.NewTopicLockedError(topic.ID)
		}

		parentID, err := resolveParent(ctx, repos, topic.ID, in.ParentReplyID)
		if err != nil {
			return err
		}

		reply = &models.Reply{
			Content:       in.Content,
			TopicID:       topic.ID,
			AuthorID:      caller.UserID,
			ParentReplyID: parentID,
		}
		if err := repos.Replies.Create(ctx, reply); err != nil {
			return err
		}
		return repos.Topics.OnReplyCreated(ctx, topic.ID, caller.UserID, reply.CreatedAt)
	})
	if err != nil {
		return nil, classifyStorageError(err, "reply", 0)
	}

	observability.RepliesTotal.WithLabelValues("create").Inc()
	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityReply, reply.ID, reply.TopicID, models.ChangeCreated, "", caller.UserID))

	reply.Votes.CallerVote = models.VoteNone
	attachReplyAuthors(ctx, s.profiles, reply)
	return reply, nil
}

func resolveParent(ctx context.Context, repos repository.Repositories, topicID uint, parentID *uint) (*uint, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := repos.Replies.GetByID(ctx, *parentID)
	if repository.IsNotFound(err) {
		return nil, models.NewValidationError("Parent reply not found")
	}
	if err != nil {
		return nil, err
	}
	if parent.TopicID != topicID {
		return nil, models.NewValidationError("Parent reply belongs to a different topic")
	}
	if parent.ParentReplyID != nil {
		// Re-anchor under the top-level reply, which must still be live.
		root, err := repos.Replies.GetByID(ctx, *parent.ParentReplyID)
		if repository.IsNotFound(err) {
			return nil, models.NewValidationError("Parent reply not found")
		}
		if err != nil {
			return nil, err
		}
		return &root.ID, nil
	}
	anchor := parent.ID
	return &anchor, nil
}

// UpdateReply replaces the content of the caller's own reply.
func (s *ReplyService) UpdateReply(ctx context.Context, caller models.Caller, id uint, content string) (reply *models.Reply, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := validation.ValidateContent(content, validation.MaxReplyContentLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx, finish := observability.StartOperation(ctx, "ReplyService", "UpdateReply", attribute.Int64("reply.id", int64(id)))
	defer finish(&err)

	err = s.store.Transaction(ctx, "reply_update", func(repos repository.Repositories) error {
		current, err := repos.Replies.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.AuthorID != caller.UserID {
			return models.NewForbiddenError("You can only edit your own replies")
		}
		if err := repos.Replies.Update(ctx, id, map[string]interface{}{
			"content":   content,
			"is_edited": true,
		}); err != nil {
			return err
		}
		reply, err = repos.Replies.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, classifyStorageError(err, "reply", id)
	}

	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityReply, reply.ID, reply.TopicID, models.ChangeUpdated, "", caller.UserID))
	return s.decorated(ctx, caller.UserID, reply)
}

// MarkBestAnswer flags a reply as a best answer for topicID. Other replies
// keep their flag, so a topic may have several.
func (s *ReplyService) MarkBestAnswer(ctx context.Context, caller models.Caller, id, topicID uint) (reply *models.Reply, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	ctx, finish := observability.StartOperation(ctx, "ReplyService", "MarkBestAnswer", attribute.Int64("reply.id", int64(id)))
	defer finish(&err)

	err = s.store.Transaction(ctx, "reply_best_answer", func(repos repository.Repositories) error {
		current, err := repos.Replies.GetForUpdate(ctx, id)
		if err != nil {
			return classifyStorageError(err, "reply", id)
		}
		if topicID != 0 && current.TopicID != topicID {
			return models.NewValidationError("Reply does not belong to this topic")
		}
		topic, err := repos.Topics.GetByID(ctx, current.TopicID)
		if err != nil {
			return classifyStorageError(err, "topic", current.TopicID)
		}
		if !canManage(caller, topic.AuthorID) {
			return models.NewForbiddenError("Only the topic author or a moderator can mark a best answer")
		}
		if err := repos.Replies.Update(ctx, id, map[string]interface{}{"is_best_answer": true}); err != nil {
			return err
		}
		reply, err = repos.Replies.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, classifyStorageError(err, "reply", id)
	}

	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityReply, reply.ID, reply.TopicID, models.ChangeUpdated, models.ActionBestAnswer, caller.UserID))
	return s.decorated(ctx, caller.UserID, reply)
}

// DeleteReply soft-deletes a reply and decrements its topic's reply count.
// Children of a deleted top-level reply are left in place.
func (s *ReplyService) DeleteReply(ctx context.Context, caller models.Caller, id uint) (err error) {
	if err := requireCaller(caller); err != nil {
		return err
	}

	ctx, finish := observability.StartOperation(ctx, "ReplyService", "DeleteReply", attribute.Int64("reply.id", int64(id)))
	defer finish(&err)

	var topicID uint
	err = s.store.Transaction(ctx, "reply_delete", func(repos repository.Repositories) error {
		current, err := repos.Replies.GetForUpdate(ctx, id)
		if err != nil {
			return classifyStorageError(err, "reply", id)
		}
		if !canManage(caller, current.AuthorID) {
			return models.NewForbiddenError("You can only delete your own replies")
		}
		topicID = current.TopicID
		if err := repos.Replies.Delete(ctx, id); err != nil {
			return err
		}
		return repos.Topics.OnReplyDeleted(ctx, current.TopicID)
	})
	if err != nil {
		return classifyStorageError(err, "reply", id)
	}

	observability.RepliesTotal.WithLabelValues("delete").Inc()
	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityReply, id, topicID, models.ChangeDeleted, "", caller.UserID))
	return nil
}

// ListReplies returns the reply tree of a topic. Hidden replies are only
// included for moderators that ask for them.
func (s *ReplyService) ListReplies(ctx context.Context, topicID uint, caller models.Caller, includeHidden bool) ([]models.ReplyNode, error) {
	repos := s.store.Repositories()
	if _, err := repos.Topics.GetByID(ctx, topicID); err != nil {
		return nil, classifyStorageError(err, "topic", topicID)
	}
	return replyTree(ctx, repos, s.votes, s.profiles, topicID, caller.UserID, includeHidden && caller.IsModerator())
}

func (s *ReplyService) decorated(ctx context.Context, callerID uint, reply *models.Reply) (*models.Reply, error) {
	if s.votes != nil {
		if err := s.votes.AnnotateReplies(ctx, callerID, reply); err != nil {
			return nil, err
		}
	}
	attachReplyAuthors(ctx, s.profiles, reply)
	return reply, nil
}

func replyTree(
	ctx context.Context,
	repos repository.Repositories,
	votes *VoteService,
	profiles ProfileLookup,
	topicID, callerID uint,
	includeModerated bool,
) ([]models.ReplyNode, error) {
	replies, err := repos.Replies.ListByTopic(ctx, topicID, includeModerated)
	if err != nil {
		return nil, classifyStorageError(err, "topic", topicID)
	}
	if votes != nil {
		if err := votes.AnnotateReplies(ctx, callerID, replies...); err != nil {
			return nil, err
		}
	}
	attachReplyAuthors(ctx, profiles, replies...)
	return thread.Build(replies), nil
}
