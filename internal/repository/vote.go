package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// VoteRepository defines the interface for vote ledger rows.
type VoteRepository interface {
	// Find returns the caller's vote on target or gorm.ErrRecordNotFound.
	Find(ctx context.Context, userID uint, target models.VoteTarget) (*models.Vote, error)
	Create(ctx context.Context, vote *models.Vote) error
	UpdateType(ctx context.Context, id uint, voteType models.VoteType) error
	Delete(ctx context.Context, id uint) error
	// CallerVotes maps target id to the caller's vote for the given ids.
	CallerVotes(ctx context.Context, userID uint, kind models.TargetKind, ids []uint) (map[uint]models.VoteType, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func targetColumn(kind models.TargetKind) string {
	if kind == models.TargetTopic {
		return "topic_id"
	}
	return "reply_id"
}

func (r *voteRepository) Find(ctx context.Context, userID uint, target models.VoteTarget) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND "+targetColumn(target.Kind())+" = ?", userID, target.ID()).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepository) Create(ctx context.Context, vote *models.Vote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *voteRepository) UpdateType(ctx context.Context, id uint, voteType models.VoteType) error {
	res := r.db.WithContext(ctx).Model(&models.Vote{}).Where("id = ?", id).
		UpdateColumn("vote_type", voteType)
	return requireAffected(res)
}

func (r *voteRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Vote{}, id)
	return requireAffected(res)
}

func (r *voteRepository) CallerVotes(ctx context.Context, userID uint, kind models.TargetKind, ids []uint) (map[uint]models.VoteType, error) {
	out := make(map[uint]models.VoteType, len(ids))
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}

	column := targetColumn(kind)
	var rows []models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, v := range rows {
		switch {
		case kind == models.TargetTopic && v.TopicID != nil:
			out[*v.TopicID] = v.VoteType
		case kind == models.TargetReply && v.ReplyID != nil:
			out[*v.ReplyID] = v.VoteType
		}
	}
	return out, nil
}
