package schema

import "time"

// Event type constants for the append-only attempt log.
const (
	EventAttemptFailed  = "attempt_failed"
	EventStagePassed    = "stage_passed"
	EventBadgeEarned    = "badge_earned"
	EventStageAdvanced  = "stage_advanced"
	EventStageRestarted = "stage_restarted"
	EventGameCompleted  = "game_completed"
	EventGameReset      = "game_reset"
)

// ProgressSnapshot is the flat record a persistence collaborator stores.
// Attempts is keyed by stage id so a reordered catalog keeps its counts.
type ProgressSnapshot struct {
	CurrentStage int            `json:"current_stage"`
	Unlocked     []int          `json:"unlocked"`
	Badges       []string       `json:"badges"`
	Attempts     map[string]int `json:"attempts,omitempty"`
	Completed    bool           `json:"completed"`
}

// GameEvent is one entry of the attempt log: a validation attempt, a pass,
// a badge, or a navigation change.
type GameEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	StageID    string    `json:"stage_id,omitempty"`
	StageIndex int       `json:"stage_index"`
	Attempt    int       `json:"attempt,omitempty"`
	Passed     bool      `json:"passed"`
	Reasons    []string  `json:"reasons,omitempty"`
	Badge      string    `json:"badge,omitempty"`
	At         time.Time `json:"at"`
}
