package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowgame/pkg/schema"
)

// AppendAttempt appends ev to the learner's attempt log with the next
// per-learner sequence number.
func (s *LibSQLStore) AppendAttempt(ctx context.Context, learnerID string, ev schema.GameEvent) (*Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attempt tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; a write forces
	// the lock before the sequence is read.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return nil, fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM attempts WHERE learner_id = ?`, learnerID,
	).Scan(&seq); err != nil {
		return nil, fmt.Errorf("get next sequence: %w", err)
	}

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var reasons any
	if len(ev.Reasons) > 0 {
		raw, err := json.Marshal(ev.Reasons)
		if err != nil {
			return nil, fmt.Errorf("marshal reasons: %w", err)
		}
		reasons = string(raw)
	}

	a := &Attempt{ID: uuid.NewString(), LearnerID: learnerID, Sequence: seq, Event: ev}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, learner_id, sequence, session_id, type, stage_id, stage_index, attempt, passed, reasons, badge, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, learnerID, seq, ev.SessionID, ev.Type, nullStr(ev.StageID), ev.StageIndex,
		ev.Attempt, boolInt(ev.Passed), reasons, nullStr(ev.Badge), ev.At,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "insert attempt: %v", err).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attempt: %w", err)
	}
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// StageHistory summarises one stage from the attempt log.
type StageHistory struct {
	StageID        string     `json:"stage_id"`
	Failed         int        `json:"failed"`
	Passes         int        `json:"passes"`
	FirstPassAt    *time.Time `json:"first_pass_at,omitempty"`
	AttemptsToPass int        `json:"attempts_to_pass,omitempty"`
	Badges         []string   `json:"badges,omitempty"`
}

// History is a replay of a learner's attempt log.
type History struct {
	LearnerID string                   `json:"learner_id"`
	Stages    map[string]*StageHistory `json:"stages"`
	Completed bool                     `json:"completed"`
	Resets    int                      `json:"resets"`
}

// ReplayAttempts folds the learner's attempt log into a per-stage summary.
// A gap in the sequence is reported as a store error.
func (s *LibSQLStore) ReplayAttempts(ctx context.Context, learnerID string) (*History, error) {
	attempts, err := s.ListAttempts(ctx, AttemptFilter{LearnerID: learnerID})
	if err != nil {
		return nil, fmt.Errorf("list attempts for replay: %w", err)
	}

	h := &History{LearnerID: learnerID, Stages: make(map[string]*StageHistory)}
	for i, a := range attempts {
		if want := int64(i + 1); a.Sequence != want {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap for learner %s: expected %d, got %d", learnerID, want, a.Sequence)
		}

		ev := a.Event
		if ev.Type == schema.EventGameReset {
			h.Resets++
			h.Completed = false
			continue
		}
		if ev.StageID == "" {
			continue
		}
		sh, ok := h.Stages[ev.StageID]
		if !ok {
			sh = &StageHistory{StageID: ev.StageID}
			h.Stages[ev.StageID] = sh
		}

		switch ev.Type {
		case schema.EventAttemptFailed:
			sh.Failed++
		case schema.EventStagePassed:
			sh.Passes++
			if sh.FirstPassAt == nil {
				at := ev.At
				sh.FirstPassAt = &at
				sh.AttemptsToPass = ev.Attempt
			}
		case schema.EventBadgeEarned:
			sh.Badges = append(sh.Badges, ev.Badge)
		case schema.EventGameCompleted:
			h.Completed = true
		}
	}
	return h, nil
}

// LearnerSink records a session's events under one learner.
type LearnerSink struct {
	store     Store
	learnerID string
}

// NewLearnerSink returns a sink appending to learnerID's attempt log.
func NewLearnerSink(s Store, learnerID string) *LearnerSink {
	return &LearnerSink{store: s, learnerID: learnerID}
}

// Record appends ev to the attempt log.
func (l *LearnerSink) Record(ctx context.Context, ev schema.GameEvent) error {
	_, err := l.store.AppendAttempt(ctx, l.learnerID, ev)
	return err
}
