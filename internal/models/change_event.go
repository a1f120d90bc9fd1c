package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names what a change event is about.
type EntityType string

const (
	EntityTopic EntityType = "topic"
	EntityReply EntityType = "reply"
)

// ChangeKind classifies a change event.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeModerated ChangeKind = "moderated"
)

// Actions attached to updated and moderated events.
const (
	ActionVote       = "vote"
	ActionBestAnswer = "best_answer"
	ActionPinned     = "pinned"
	ActionUnpinned   = "unpinned"
	ActionLocked     = "locked"
	ActionUnlocked   = "unlocked"
	ActionHidden     = "hidden"
	ActionUnhidden   = "unhidden"
)

// ChangeEvent is published after a committed mutation.
type ChangeEvent struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   uint       `json:"entity_id"`
	TopicID    uint       `json:"topic_id"`
	ChangeKind ChangeKind `json:"change_kind"`
	Action     string     `json:"action,omitempty"`
	ActorID    uint       `json:"actor_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewChangeEvent stamps a fresh event.
func NewChangeEvent(entity EntityType, entityID, topicID uint, kind ChangeKind, action string, actorID uint) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		EntityType: entity,
		EntityID:   entityID,
		TopicID:    topicID,
		ChangeKind: kind,
		Action:     action,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}
