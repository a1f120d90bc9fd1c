package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"agora/internal/listing"
	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopicRepository defines the interface for topic data operations
type TopicRepository interface {
	Create(ctx context.Context, topic *models.Topic) error
	GetByID(ctx context.Context, id uint) (*models.Topic, error)
	// GetForUpdate reads the topic and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Topic, error)
	// List returns one page of live topics matching q, pinned first.
	List(ctx context.Context, q TopicQuery) ([]*models.Topic, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
	OnReplyCreated(ctx context.Context, topicID, authorID uint, at time.Time) error
	OnReplyDeleted(ctx context.Context, topicID uint) error
	AdjustVotes(ctx context.Context, id uint, upDelta, downDelta int) error
	TogglePinned(ctx context.Context, id uint) error
	ToggleLocked(ctx context.Context, id uint) error
}

// topicRepository implements TopicRepository
type topicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *gorm.DB) TopicRepository {
	return &topicRepository{db: db}
}

func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) error {
	return r.db.WithContext(ctx).Create(topic).Error
}

func (r *topicRepository) GetByID(ctx context.Context, id uint) (*models.Topic, error) {
	var topic models.Topic
	if err := r.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) GetForUpdate(ctx context.Context, id uint) (*models.Topic, error) {
	var topic models.Topic
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&topic, id).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// TopicQuery selects and orders a page of topics. An empty or "all"
// category keeps every category; a non-positive Limit returns every row.
type TopicQuery struct {
	Category models.Category
	Search   string
	Sort     listing.SortKey
	Limit    int
	Offset   int
}

var sortColumns = map[listing.SortKey]string{
	listing.SortPopular: "(upvotes - downvotes) DESC",
	listing.SortReplies: "replies_count DESC",
	listing.SortViews:   "views_count DESC",
}

func (r *topicRepository) List(ctx context.Context, q TopicQuery) ([]*models.Topic, error) {
	query := r.db.WithContext(ctx).Model(&models.Topic{})
	if q.Category != "" && q.Category != models.CategoryAll {
		query = query.Where("category = ?", q.Category)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		// Tags are stored as a JSON array, so an exact tag is its quoted form.
		quoted, err := json.Marshal(term)
		if err != nil {
			return nil, err
		}
		substr := "%" + escapeLike(term) + "%"
		query = query.Where(
			"(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!' OR LOWER(tags) LIKE ? ESCAPE '!')",
			substr, substr, "%"+escapeLike(string(quoted))+"%",
		)
	}

	query = query.Order("is_pinned DESC")
	if column, ok := sortColumns[q.Sort]; ok {
		query = query.Order(column)
	}
	query = query.Order("updated_at DESC").Order("id DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var topics []*models.Topic
	if err := query.Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Update applies column updates and refreshes updated_at. Map updates bypass
// field serializers, so tags are encoded here.
func (r *topicRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if tags, ok := fields["tags"].([]string); ok {
		encoded, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		fields["tags"] = string(encoded)
	}
	res := r.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", id).Updates(fields)
	return requireAffected(res)
}

func (r *topicRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Topic{}, id)
	return requireAffected(res)
}

func (r *topicRepository) IncrementViews(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1"))
	return requireAffected(res)
}

// OnReplyCreated bumps the reply counter and last-reply fields without
// touching updated_at, which tracks edits to the topic itself.
func (r *topicRepository) OnReplyCreated(ctx context.Context, topicID, authorID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", topicID).
		UpdateColumns(map[string]interface{}{
			"replies_count":           gorm.Expr("replies_count + 1"),
			"last_reply_at":           at,
			"last_reply_by_author_id": authorID,
		})
	return requireAffected(res)
}

// OnReplyDeleted decrements the reply counter, floored at zero. The
// last-reply fields are left as they are.
// OnReplyDeleted also applies to soft-deleted topics so orphaned replies
// stay deletable.
func (r *topicRepository) OnReplyDeleted(ctx context.Context, topicID uint) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&models.Topic{}).Where("id = ?", topicID).
		UpdateColumn("replies_count", counterExpr("replies_count", -1))
	return requireAffected(res)
}

func (r *topicRepository) AdjustVotes(ctx context.Context, id uint, upDelta, downDelta int) error {
	res := r.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"upvotes":   counterExpr("upvotes", upDelta),
			"downvotes": counterExpr("downvotes", downDelta),
		})
	return requireAffected(res)
}

func (r *topicRepository) TogglePinned(ctx context.Context, id uint) error {
	return r.toggle(ctx, id, "is_pinned")
}

func (r *topicRepository) ToggleLocked(ctx context.Context, id uint) error {
	return r.toggle(ctx, id, "is_locked")
}

// toggle flips a boolean column in one statement; concurrent toggles
// serialize on the row and the last one wins.
func (r *topicRepository) toggle(ctx context.Context, id uint, column string) error {
	res := r.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr("NOT "+column))
	return requireAffected(res)
}
