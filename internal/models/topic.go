// Package models contains the forum's domain types and their storage mapping.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Category is one of the fixed discussion areas.
type Category string

const (
	CategoryGrammar      Category = "grammar"
	CategoryVocabulary   Category = "vocabulary"
	CategoryConversation Category = "conversation"
	CategoryCulture      Category = "culture"
	CategoryHomework     Category = "homework"

	// CategoryAll is accepted by listing filters only.
	CategoryAll Category = "all"
)

// Categories lists the categories a topic may be filed under.
var Categories = []Category{
	CategoryGrammar,
	CategoryVocabulary,
	CategoryConversation,
	CategoryCulture,
	CategoryHomework,
}

// Valid reports whether c is a storable category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TopicStatus is the lifecycle label of a topic. It is independent of the
// IsPinned/IsLocked/IsResolved flags.
type TopicStatus string

const (
	TopicStatusOpen     TopicStatus = "open"
	TopicStatusClosed   TopicStatus = "closed"
	TopicStatusPinned   TopicStatus = "pinned"
	TopicStatusResolved TopicStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s TopicStatus) Valid() bool {
	switch s {
	case TopicStatusOpen, TopicStatusClosed, TopicStatusPinned, TopicStatusResolved:
		return true
	}
	return false
}

// VoteSummary is the aggregate vote view embedded in topics and replies.
// Upvotes and Downvotes are persisted; CallerVote is filled per request.
type VoteSummary struct {
	Upvotes    int      `gorm:"not null;default:0" json:"upvotes"`
	Downvotes  int      `gorm:"not null;default:0" json:"downvotes"`
	CallerVote VoteType `gorm:"-" json:"caller_vote"`
}

// Score is upvotes minus downvotes.
func (v VoteSummary) Score() int {
	return v.Upvotes - v.Downvotes
}

// Topic is a root discussion post.
type Topic struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	Title               string      `gorm:"size:300;not null" json:"title"`
	Content             string      `gorm:"type:text;not null" json:"content"`
	Category            Category    `gorm:"size:32;not null;index" json:"category"`
	Status              TopicStatus `gorm:"size:16;not null;default:open" json:"status"`
	AuthorID            uint        `gorm:"not null;index" json:"author_id"`
	ViewsCount          int         `gorm:"not null;default:0" json:"views_count"`
	RepliesCount        int         `gorm:"not null;default:0" json:"replies_count"`
	LastReplyAt         *time.Time  `json:"last_reply_at,omitempty"`
	LastReplyByAuthorID *uint       `json:"last_reply_by_author_id,omitempty"`
	Tags                []string    `gorm:"serializer:json;type:text;not null" json:"tags"`
	IsPinned            bool        `gorm:"not null;default:false;index" json:"is_pinned"`
	IsLocked            bool        `gorm:"not null;default:false" json:"is_locked"`
	IsResolved          bool        `gorm:"not null;default:false" json:"is_resolved"`
	Votes               VoteSummary `gorm:"embedded" json:"votes"`
	// Author is joined from the profile directory at read time.
	Author    *AuthorProfile `gorm:"-" json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TopicDetail is a topic with its reply tree.
type TopicDetail struct {
	Topic   *Topic      `json:"topic"`
	Replies []ReplyNode `json:"replies"`
}
