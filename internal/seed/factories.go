// Package seed provides helpers to create demo and test data for the forum
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"agora/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var tagPool = []string{
	"subjunctive", "past-tense", "phrasal-verbs", "idioms", "pronunciation",
	"false-friends", "slang", "formal", "exam-prep", "listening", "writing",
	"reading", "prepositions", "articles", "conditionals",
}

// Factory builds forum entities and persists them. Replies and votes keep the
// aggregate counters on their parents in step, so seeded data looks like it
// went through the services.
type Factory struct {
	db   *gorm.DB
	fake *gofakeit.Faker
	now  time.Time
}

// NewFactory creates a Factory bound to db. A zero seed picks a time-based one.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, fake: gofakeit.New(seed), now: time.Now().UTC()}
}

// CreateProfile persists a profile for userID.
func (f *Factory) CreateProfile(userID uint, overrides ...func(*models.AuthorProfile)) (*models.AuthorProfile, error) {
	profile := &models.AuthorProfile{
		UserID:          userID,
		DisplayName:     f.fake.Name(),
		ReputationScore: f.fake.IntRange(0, 500),
		Badges:          []string{},
	}
	if f.fake.IntRange(0, 3) == 0 {
		profile.Badges = append(profile.Badges, f.fake.RandomString([]string{"helper", "streak", "polyglot"}))
	}
	for _, override := range overrides {
		override(profile)
	}
	if err := f.db.Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// BuildTopic constructs a topic by authorID without persisting it.
func (f *Factory) BuildTopic(authorID uint, overrides ...func(*models.Topic)) *models.Topic {
	created := f.now.Add(-time.Duration(f.fake.IntRange(1, 60*24*30)) * time.Minute)
	topic := &models.Topic{
		Title:      strings.TrimSuffix(f.fake.Question(), "?") + "?",
		Content:    f.fake.Paragraph(1, f.fake.IntRange(2, 5), 12, " "),
		Category:   models.Categories[f.fake.IntRange(0, len(models.Categories)-1)],
		Status:     models.TopicStatusOpen,
		AuthorID:   authorID,
		ViewsCount: f.fake.IntRange(0, 400),
		Tags:       f.tags(),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, override := range overrides {
		override(topic)
	}
	return topic
}

// CreateTopic builds and persists a topic.
func (f *Factory) CreateTopic(authorID uint, overrides ...func(*models.Topic)) (*models.Topic, error) {
	topic := f.BuildTopic(authorID, overrides...)
	if err := f.db.Create(topic).Error; err != nil {
		return nil, err
	}
	return topic, nil
}

// CreateReply persists a reply on topic, nested under parent when non-nil,
// and bumps the topic's reply count and last-reply fields.
func (f *Factory) CreateReply(topic *models.Topic, authorID uint, parent *models.Reply, overrides ...func(*models.Reply)) (*models.Reply, error) {
	after := topic.CreatedAt
	if topic.LastReplyAt != nil {
		after = *topic.LastReplyAt
	}
	created := after.Add(time.Duration(f.fake.IntRange(1, 180)) * time.Minute)
	if created.After(f.now) {
		created = f.now
	}

	reply := &models.Reply{
		Content:   f.fake.Paragraph(1, f.fake.IntRange(1, 3), 10, " "),
		TopicID:   topic.ID,
		AuthorID:  authorID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if parent != nil {
		if parent.TopicID != topic.ID {
			return nil, fmt.Errorf("parent reply %d belongs to topic %d", parent.ID, parent.TopicID)
		}
		root := parent.ID
		if parent.ParentReplyID != nil {
			root = *parent.ParentReplyID
		}
		reply.ParentReplyID = &root
	}
	for _, override := range overrides {
		override(reply)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return err
		}
		return tx.Model(&models.Topic{}).Where("id = ?", topic.ID).UpdateColumns(map[string]interface{}{
			"replies_count":           gorm.Expr("replies_count + 1"),
			"last_reply_at":           reply.CreatedAt,
			"last_reply_by_author_id": reply.AuthorID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	topic.RepliesCount++
	topic.LastReplyAt = &reply.CreatedAt
	topic.LastReplyByAuthorID = &reply.AuthorID
	return reply, nil
}

// CreateVote records userID's vote on target and bumps the target's counter.
func (f *Factory) CreateVote(userID uint, target models.VoteTarget, voteType models.VoteType) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if !voteType.Valid() {
		return models.NewValidationError("vote type must be up or down")
	}

	column := "upvotes"
	if voteType == models.VoteDown {
		column = "downvotes"
	}
	vote := &models.Vote{
		UserID:   userID,
		TopicID:  target.TopicID,
		ReplyID:  target.ReplyID,
		VoteType: voteType,
	}

	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(vote).Error; err != nil {
			return err
		}
		var model interface{} = &models.Reply{}
		if target.Kind() == models.TargetTopic {
			model = &models.Topic{}
		}
		return tx.Model(model).Where("id = ?", target.ID()).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	})
}

func (f *Factory) tags() []string {
	n := f.fake.IntRange(0, 3)
	seen := make(map[string]bool, n)
	tags := make([]string, 0, n)
	for len(tags) < n {
		tag := f.fake.RandomString(tagPool)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
