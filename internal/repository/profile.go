package repository

import (
	"context"
	"log/slog"

	"agora/internal/database"
	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository reads author profiles owned by the identity service.
type ProfileRepository interface {
	GetByUserIDs(ctx context.Context, ids []uint) ([]models.AuthorProfile, error)
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a read-only profile repository.
func NewProfileRepository(db *gorm.DB, logger *slog.Logger) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger(logger, "author_profiles")}
}

// GetByUserIDs returns the profiles that exist. A missing profile table is
// treated as an empty directory so the forum works before it is provisioned.
func (r *profileRepository) GetByUserIDs(ctx context.Context, ids []uint) ([]models.AuthorProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var profiles []models.AuthorProfile
	err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&profiles).Error
	if err != nil {
		if database.IsMissingTableError(err) {
			r.log.LogError(ctx, err, "get_by_user_ids")
			return nil, nil
		}
		return nil, err
	}
	return profiles, nil
}
