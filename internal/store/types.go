package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/flowgame/pkg/schema"
)

// Learner is a registered player profile.
type Learner struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	LastSeenAt *time.Time      `json:"last_seen_at,omitempty"`
}

// ProgressRecord is a stored progression snapshot.
type ProgressRecord struct {
	LearnerID string                  `json:"learner_id"`
	Pack      string                  `json:"pack"`
	Snapshot  schema.ProgressSnapshot `json:"snapshot"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Attempt is one row of the attempt log. Sequence increases per learner.
type Attempt struct {
	ID        string           `json:"id"`
	LearnerID string           `json:"learner_id"`
	Sequence  int64            `json:"sequence"`
	Event     schema.GameEvent `json:"event"`
}

// AttemptFilter narrows ListAttempts. Zero fields match everything.
type AttemptFilter struct {
	LearnerID string
	Type      string
	StageID   string
	Since     int64 // sequence, exclusive
	Limit     int
}
