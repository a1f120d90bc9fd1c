package service

import (
	"context"
	"log/slog"
	"strings"

	"agora/internal/listing"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTopicPageSize = 50
	MaxTopicPageSize     = 100
)

type TopicService struct {
	store     repository.Store
	votes     *VoteService
	profiles  ProfileLookup
	publisher Publisher
	logger    *slog.Logger
}

type CreateTopicInput struct {
	Title    string
	Content  string
	Category models.Category
	Tags     []string
}

// TopicPatch carries the fields of an update; nil fields are left alone.
type TopicPatch struct {
	Title      *string
	Content    *string
	Category   *models.Category
	Tags       *[]string
	Status     *models.TopicStatus
	IsResolved *bool
}

// TopicFilter selects and pages a topic listing.
type TopicFilter struct {
	Category models.Category
	Search   string
	SortBy   string
	Limit    int
	Offset   int
}

func NewTopicService(
	store repository.Store,
	votes *VoteService,
	profiles ProfileLookup,
	publisher Publisher,
	logger *slog.Logger,
) *TopicService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicService{
		store:     store,
		votes:     votes,
		profiles:  profiles,
		publisher: publisherOrNop(publisher),
		logger:    logger,
	}
}

func (s *TopicService) CreateTopic(ctx context.Context, caller models.Caller, in CreateTopicInput) (topic *models.Topic, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	title, err := validation.NormalizeTitle(in.Title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateContent(in.Content, validation.MaxTopicContentLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx, finish := observability.StartOperation(ctx, "TopicService", "CreateTopic")
	defer finish(&err)

	topic = &models.Topic{
		Title:    title,
		Content:  in.Content,
		Category: in.Category,
		Status:   models.TopicStatusOpen,
		AuthorID: caller.UserID,
		Tags:     tags,
	}
	if err := s.store.Repositories().Topics.Create(ctx, topic); err != nil {
		return nil, classifyStorageError(err, "topic", 0)
	}

	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityTopic, topic.ID, topic.ID, models.ChangeCreated, "", caller.UserID))

	topic.Votes.CallerVote = models.VoteNone
	attachTopicAuthors(ctx, s.profiles, topic)
	return topic, nil
}

// GetTopic returns the topic with callerID's vote and the author profile.
func (s *TopicService) GetTopic(ctx context.Context, id, callerID uint) (*models.Topic, error) {
	topic, err := s.store.Repositories().Topics.GetByID(ctx, id)
	if err != nil {
		return nil, classifyStorageError(err, "topic", id)
	}
	if err := s.decorate(ctx, callerID, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// GetTopicDetail records a view and returns the topic with its default reply tree.
func (s *TopicService) GetTopicDetail(ctx context.Context, id, callerID uint) (detail *models.TopicDetail, err error) {
	ctx, finish := observability.StartOperation(ctx, "TopicService", "GetTopicDetail", attribute.Int64("topic.id", int64(id)))
	defer finish(&err)

	repos := s.store.Repositories()
	topic, err := repos.Topics.GetByID(ctx, id)
	if err != nil {
		return nil, classifyStorageError(err, "topic", id)
	}

	if err := s.RecordView(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to record topic view",
			slog.Uint64("topic_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	} else {
		topic.ViewsCount++
	}

	if err := s.decorate(ctx, callerID, topic); err != nil {
		return nil, err
	}

	replies, err := replyTree(ctx, repos, s.votes, s.profiles, id, callerID, false)
	if err != nil {
		return nil, err
	}
	return &models.TopicDetail{Topic: topic, Replies: replies}, nil
}

// RecordView counts one view. Views are not deduplicated.
func (s *TopicService) RecordView(ctx context.Context, id uint) error {
	if err := s.store.Repositories().Topics.IncrementViews(ctx, id); err != nil {
		return classifyStorageError(err, "topic", id)
	}
	observability.TopicViews.Inc()
	return nil
}

func (s *TopicService) UpdateTopic(ctx context.Context, caller models.Caller, id uint, patch TopicPatch) (topic *models.Topic, err error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	fields, err := patchFields(patch)
	if err != nil {
		return nil, err
	}

	ctx, finish := observability.StartOperation(ctx, "TopicService", "UpdateTopic", attribute.Int64("topic.id", int64(id)))
	defer finish(&err)

	err = s.store.Transaction(ctx, "topic_update", func(repos repository.Repositories) error {
		current, err := repos.Topics.GetForUpdate(ctx, id)
		if err != nil {
			return classifyStorageError(err, "topic", id)
		}
		if !canManage(caller, current.AuthorID) {
			return models.NewForbiddenError("You can only edit your own topics")
		}
		if len(fields) == 0 {
			topic = current
			return nil
		}
		if err := repos.Topics.Update(ctx, id, fields); err != nil {
			return err
		}
		topic, err = repos.Topics.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, classifyStorageError(err, "topic", id)
	}

	if len(fields) > 0 {
		s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityTopic, id, id, models.ChangeUpdated, "", caller.UserID))
	}

	if err := s.decorate(ctx, caller.UserID, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// DeleteTopic soft-deletes the topic. Its replies are left in place.
func (s *TopicService) DeleteTopic(ctx context.Context, caller models.Caller, id uint) (err error) {
	if err := requireCaller(caller); err != nil {
		return err
	}

	ctx, finish := observability.StartOperation(ctx, "TopicService", "DeleteTopic", attribute.Int64("topic.id", int64(id)))
	defer finish(&err)

	err = s.store.Transaction(ctx, "topic_delete", func(repos repository.Repositories) error {
		current, err := repos.Topics.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(caller, current.AuthorID) {
			return models.NewForbiddenError("You can only delete your own topics")
		}
		return repos.Topics.Delete(ctx, id)
	})
	if err != nil {
		return classifyStorageError(err, "topic", id)
	}

	s.publisher.Publish(ctx, models.NewChangeEvent(models.EntityTopic, id, id, models.ChangeDeleted, "", caller.UserID))
	return nil
}

// ListTopics filters, orders and pages the topic list for callerID.
func (s *TopicService) ListTopics(ctx context.Context, filter TopicFilter, callerID uint) (topics []*models.Topic, err error) {
	category := models.Category(strings.ToLower(strings.TrimSpace(string(filter.Category))))
	if category != "" && category != models.CategoryAll && !category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	sortKey, ok := listing.ParseSortKey(filter.SortBy)
	if !ok {
		return nil, models.NewValidationError("Invalid sort; expected recent, popular, replies or views")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, models.NewValidationError("limit and offset must not be negative")
	}
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultTopicPageSize
	}
	if limit > MaxTopicPageSize {
		limit = MaxTopicPageSize
	}

	ctx, finish := observability.StartOperation(ctx, "TopicService", "ListTopics",
		attribute.String("topic.category", string(category)),
		attribute.String("topic.sort", string(sortKey)),
	)
	defer finish(&err)

	topics, err = s.store.Repositories().Topics.List(ctx, repository.TopicQuery{
		Category: category,
		Search:   filter.Search,
		Sort:     sortKey,
		Limit:    limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, classifyStorageError(err, "topic", 0)
	}
	if topics == nil {
		topics = []*models.Topic{}
	}

	if err := s.decorate(ctx, callerID, topics...); err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *TopicService) decorate(ctx context.Context, callerID uint, topics ...*models.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	if s.votes != nil {
		if err := s.votes.AnnotateTopics(ctx, callerID, topics...); err != nil {
			return err
		}
	}
	attachTopicAuthors(ctx, s.profiles, topics...)
	return nil
}

func patchFields(patch TopicPatch) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if patch.Title != nil {
		title, err := validation.NormalizeTitle(*patch.Title)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["title"] = title
	}
	if patch.Content != nil {
		if err := validation.ValidateContent(*patch.Content, validation.MaxTopicContentLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["content"] = *patch.Content
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, models.NewValidationError("Invalid category")
		}
		fields["category"] = *patch.Category
	}
	if patch.Tags != nil {
		tags, err := validation.NormalizeTags(*patch.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["tags"] = tags
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, models.NewValidationError("Invalid status")
		}
		fields["status"] = *patch.Status
	}
	if patch.IsResolved != nil {
		fields["is_resolved"] = *patch.IsResolved
	}
	return fields, nil
}
