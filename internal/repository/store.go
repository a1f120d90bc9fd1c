// Package repository provides the GORM data access layer for topics, replies,
// the vote ledger and external author profiles.
package repository

import (
	"context"
	"errors"

	"agora/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repositories groups the forum repositories bound to one connection or transaction.
type Repositories struct {
	Topics  TopicRepository
	Replies ReplyRepository
	Votes   VoteRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// Transaction runs fn with repositories bound to a single transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, operation string, fn func(repos Repositories) error) error
}

type gormStore struct {
	db    *gorm.DB
	repos Repositories
}

// NewStore creates a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, repos: bind(db)}
}

func bind(db *gorm.DB) Repositories {
	return Repositories{
		Topics:  NewTopicRepository(db),
		Replies: NewReplyRepository(db),
		Votes:   NewVoteRepository(db),
	}
}

func (s *gormStore) Repositories() Repositories {
	return s.repos
}

func (s *gormStore) Transaction(ctx context.Context, operation string, fn func(repos Repositories) error) error {
	defer observability.TrackQuery(operation)()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(bind(tx))
	})
}

// PostgreSQL SQLSTATEs that mean "retry the transaction".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// IsConflict reports whether err is a uniqueness or serialization conflict
// that a retry of the whole transaction may resolve.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// requireAffected turns a zero-row update into gorm.ErrRecordNotFound.
func requireAffected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// counterExpr adds delta to column without going below zero.
func counterExpr(column string, delta int) interface{} {
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}
