package models

import "time"

// VoteType is the polarity of a vote. VoteNone only appears as a caller's
// view of a target they have not voted on.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
	VoteNone VoteType = "none"
)

// Valid reports whether v can be stored in the ledger.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Vote is one row of the ledger: a single user's vote on a single target.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_votes_user_topic;uniqueIndex:idx_votes_user_reply" json:"user_id"`
	TopicID   *uint     `gorm:"uniqueIndex:idx_votes_user_topic" json:"topic_id,omitempty"`
	ReplyID   *uint     `gorm:"uniqueIndex:idx_votes_user_reply" json:"reply_id,omitempty"`
	VoteType  VoteType  `gorm:"size:8;not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}

// TargetKind distinguishes topic and reply vote targets.
type TargetKind string

const (
	TargetTopic TargetKind = "topic"
	TargetReply TargetKind = "reply"
)

// VoteTarget names exactly one topic or reply.
type VoteTarget struct {
	TopicID *uint `json:"topic_id,omitempty"`
	ReplyID *uint `json:"reply_id,omitempty"`
}

// TopicTarget builds a target for a topic.
func TopicTarget(id uint) VoteTarget {
	return VoteTarget{TopicID: &id}
}

// ReplyTarget builds a target for a reply.
func ReplyTarget(id uint) VoteTarget {
	return VoteTarget{ReplyID: &id}
}

// Validate rejects targets that name neither or both kinds.
func (t VoteTarget) Validate() error {
	switch {
	case t.TopicID != nil && t.ReplyID != nil:
		return NewValidationError("vote target must be a topic or a reply, not both")
	case t.TopicID == nil && t.ReplyID == nil:
		return NewValidationError("vote target is required")
	case t.TopicID != nil && *t.TopicID == 0, t.ReplyID != nil && *t.ReplyID == 0:
		return NewValidationError("vote target id is invalid")
	}
	return nil
}

// Kind returns the target kind. Call Validate first.
func (t VoteTarget) Kind() TargetKind {
	if t.TopicID != nil {
		return TargetTopic
	}
	return TargetReply
}

// ID returns the target id. Call Validate first.
func (t VoteTarget) ID() uint {
	if t.TopicID != nil {
		return *t.TopicID
	}
	return *t.ReplyID
}

// VoteState is the ledger's answer after a cast or removal.
type VoteState struct {
	Upvotes    int      `json:"upvotes"`
	Downvotes  int      `json:"downvotes"`
	CallerVote VoteType `json:"caller_vote"`
}
