package models

import (
	"time"

	"gorm.io/gorm"
)

// Reply is a response to a topic, optionally nested one level under a
// top-level reply.
type Reply struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Content       string      `gorm:"type:text;not null" json:"content"`
	TopicID       uint        `gorm:"not null;index" json:"topic_id"`
	AuthorID      uint        `gorm:"not null;index" json:"author_id"`
	ParentReplyID *uint       `gorm:"index" json:"parent_reply_id,omitempty"`
	IsEdited      bool        `gorm:"not null;default:false" json:"is_edited"`
	IsBestAnswer  bool        `gorm:"not null;default:false" json:"is_best_answer"`
	IsModerated   bool        `gorm:"not null;default:false" json:"is_moderated"`
	Votes         VoteSummary `gorm:"embedded" json:"votes"`
	// Author is joined from the profile directory at read time.
	Author    *AuthorProfile `gorm:"-" json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsTopLevel reports whether the reply answers the topic directly.
func (r *Reply) IsTopLevel() bool {
	return r.ParentReplyID == nil
}

// ReplyNode is a top-level reply together with its direct children.
type ReplyNode struct {
	Reply
	Children []Reply `json:"children"`
}
