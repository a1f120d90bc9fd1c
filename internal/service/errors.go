package service

import (
	"context"
	"errors"

	"agora/internal/models"
	"agora/internal/repository"
)

// Publisher receives change events once the mutation that produced them has
// committed. Implementations must not block on slow subscribers.
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.ChangeEvent) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// classifyStorageError maps a repository error onto the forum error set.
// Errors that are already classified pass through unchanged.
func classifyStorageError(err error, resource string, id uint) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case repository.IsNotFound(err):
		return models.NewNotFoundError(resource, id)
	case repository.IsConflict(err):
		return models.NewConflictError(resource+" was modified concurrently, please retry", err)
	default:
		return models.NewStorageUnavailableError(err)
	}
}

func requireCaller(caller models.Caller) error {
	if caller.UserID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return nil
}

func canManage(caller models.Caller, authorID uint) bool {
	return caller.UserID == authorID || caller.IsModerator()
}
