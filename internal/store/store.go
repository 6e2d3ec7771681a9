// Package store persists learners, progression snapshots and the attempt
// log in an embedded libSQL database.
package store

import (
	"context"

	"github.com/rendis/flowgame/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Learners
	RegisterLearner(ctx context.Context, learner *Learner) error
	GetLearner(ctx context.Context, id string) (*Learner, error)
	GetLearnerByName(ctx context.Context, name string) (*Learner, error)
	UpdateLearnerSeen(ctx context.Context, id string) error
	ListLearners(ctx context.Context) ([]*Learner, error)

	// Progression snapshots, one per learner and stage pack
	SaveProgress(ctx context.Context, learnerID, pack string, snap schema.ProgressSnapshot) error
	LoadProgress(ctx context.Context, learnerID, pack string) (*ProgressRecord, error)

	// Attempt log (append-only)
	AppendAttempt(ctx context.Context, learnerID string, ev schema.GameEvent) (*Attempt, error)
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]*Attempt, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
