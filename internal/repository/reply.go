package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReplyRepository defines the interface for reply data operations
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	GetByID(ctx context.Context, id uint) (*models.Reply, error)
	// GetForUpdate reads the reply and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Reply, error)
	// ListByTopic returns live replies ordered by creation time. Moderated
	// replies are included only when includeModerated is set.
	ListByTopic(ctx context.Context, topicID uint, includeModerated bool) ([]*models.Reply, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	AdjustVotes(ctx context.Context, id uint, upDelta, downDelta int) error
}

// replyRepository implements ReplyRepository
type replyRepository struct {
	db *gorm.DB
}

// NewReplyRepository creates a new reply repository
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}

func (r *replyRepository) GetByID(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).First(&reply, id).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *replyRepository) GetForUpdate(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reply, id).Error
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *replyRepository) ListByTopic(ctx context.Context, topicID uint, includeModerated bool) ([]*models.Reply, error) {
	var replies []*models.Reply
	query := r.db.WithContext(ctx).Where("topic_id = ?", topicID)
	if !includeModerated {
		query = query.Where("is_moderated = ?", false)
	}
	if err := query.Order("created_at ASC, id ASC").Find(&replies).Error; err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *replyRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).Updates(fields)
	return requireAffected(res)
}

func (r *replyRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Reply{}, id)
	return requireAffected(res)
}

func (r *replyRepository) AdjustVotes(ctx context.Context, id uint, upDelta, downDelta int) error {
	res := r.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"upvotes":   counterExpr("upvotes", upDelta),
			"downvotes": counterExpr("downvotes", downDelta),
		})
	return requireAffected(res)
}
