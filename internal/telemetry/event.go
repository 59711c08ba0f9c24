package telemetry

import (
	"time"

	"galway/internal/olive"
)

type EventType string

const (
	EventUserRegistered  EventType = "user_registered"
	EventBranchGenerated EventType = "branch_generated"
	EventBranchConfirmed EventType = "branch_confirmed"
	EventSeedPlanted     EventType = "seed_planted"
	EventThreadCreated   EventType = "thread_created"
	EventReplyCreated    EventType = "reply_created"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}

// BranchMetadata describes a generated branch for the stats breakdown.
func BranchMetadata(b olive.BranchArtifact) EventMetadata {
	return EventMetadata{
		"olive_count": b.OliveCount,
		"olive_type":  b.OliveType,
		"rarity":      string(b.Rarity.Overall()),
		"branch_id":   b.ShortID(),
	}
}
