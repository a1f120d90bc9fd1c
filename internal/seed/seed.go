package seed

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumUsers           int
	NumTopics          int
	MaxRepliesPerTopic int
	// VotePercent is the chance (0-100) that a given user votes on a given
	// topic or reply.
	VotePercent int
	ShouldClean bool
	// RandSeed makes runs reproducible. Zero picks a time-based seed.
	RandSeed int64
	Logger   *slog.Logger
}

// DefaultOptions returns the options used by the seed command.
func DefaultOptions() Options {
	return Options{
		NumUsers:           12,
		NumTopics:          40,
		MaxRepliesPerTopic: 8,
		VotePercent:        20,
	}
}

// Result counts what a run created.
type Result struct {
	Profiles int
	Topics   int
	Replies  int
	Votes    int
}

// Seed populates the database with profiles, topics, threaded replies and
// votes. User IDs run from 1 to NumUsers.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NumUsers < 1 {
		return nil, fmt.Errorf("seed needs at least one user, got %d", opts.NumUsers)
	}

	logger.Info("Starting database seeding",
		slog.Int("users", opts.NumUsers),
		slog.Int("topics", opts.NumTopics))

	db = db.WithContext(ctx)
	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
		logger.Info("Cleared existing forum data")
	}

	res := &Result{}
	err := db.Transaction(func(tx *gorm.DB) error {
		f := NewFactory(tx, opts.RandSeed)

		users := make([]uint, 0, opts.NumUsers)
		for i := 1; i <= opts.NumUsers; i++ {
			userID := uint(i)
			if _, err := f.CreateProfile(userID); err != nil {
				return fmt.Errorf("failed to create profile %d: %w", userID, err)
			}
			users = append(users, userID)
			res.Profiles++
		}

		for i := 0; i < opts.NumTopics; i++ {
			topic, err := f.CreateTopic(f.pick(users))
			if err != nil {
				return fmt.Errorf("failed to create topic: %w", err)
			}
			res.Topics++
			if err := f.vote(users, models.TopicTarget(topic.ID), opts.VotePercent, res); err != nil {
				return err
			}

			var roots []*models.Reply
			for n := f.fake.IntRange(0, opts.MaxRepliesPerTopic); n > 0; n-- {
				var parent *models.Reply
				if len(roots) > 0 && f.fake.IntRange(0, 2) == 0 {
					parent = roots[f.fake.IntRange(0, len(roots)-1)]
				}
				reply, err := f.CreateReply(topic, f.pick(users), parent)
				if err != nil {
					return fmt.Errorf("failed to create reply on topic %d: %w", topic.ID, err)
				}
				res.Replies++
				if parent == nil {
					roots = append(roots, reply)
				}
				if err := f.vote(users, models.ReplyTarget(reply.ID), opts.VotePercent, res); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Database seeding completed",
		slog.Int("profiles", res.Profiles),
		slog.Int("topics", res.Topics),
		slog.Int("replies", res.Replies),
		slog.Int("votes", res.Votes))
	return res, nil
}

func (f *Factory) pick(users []uint) uint {
	return users[f.fake.IntRange(0, len(users)-1)]
}

// vote lets each user vote on target with the given chance, mostly upward.
func (f *Factory) vote(users []uint, target models.VoteTarget, percent int, res *Result) error {
	if percent <= 0 {
		return nil
	}
	for _, userID := range users {
		if f.fake.IntRange(1, 100) > percent {
			continue
		}
		voteType := models.VoteUp
		if f.fake.IntRange(0, 3) == 0 {
			voteType = models.VoteDown
		}
		if err := f.CreateVote(userID, target, voteType); err != nil {
			return fmt.Errorf("failed to create vote: %w", err)
		}
		res.Votes++
	}
	return nil
}

func clearData(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE votes, replies, topics, author_profiles RESTART IDENTITY CASCADE`).Error
	}
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for _, model := range []interface{}{&models.Vote{}, &models.Reply{}, &models.Topic{}, &models.AuthorProfile{}} {
		if err := all.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
