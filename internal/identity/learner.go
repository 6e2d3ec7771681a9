// Package identity registers learner profiles on top of the store.
package identity

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/rendis/flowgame/internal/store"
	"github.com/rendis/flowgame/pkg/schema"
)

// DefaultLearner is the profile used when none is configured.
const DefaultLearner = "player"

const maxNameLen = 64

// NormalizeName trims a learner name; empty names become DefaultLearner.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultLearner
	}
	return name
}

// ValidateName checks that a learner name is printable and not too long.
func ValidateName(name string) error {
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "learner name is required")
	}
	if len([]rune(name)) > maxNameLen {
		return schema.NewErrorf(schema.ErrCodeValidation, "learner name is longer than %d characters", maxNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return schema.NewErrorf(schema.ErrCodeValidation, "learner name %q contains control characters", name)
		}
	}
	return nil
}

// EnsureLearner retrieves the learner with the given name or registers a
// new one with a fresh id. An existing learner has last_seen_at updated.
func EnsureLearner(ctx context.Context, s store.Store, name string, metadata json.RawMessage) (*store.Learner, error) {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	existing, err := s.GetLearnerByName(ctx, name)
	if err == nil {
		_ = s.UpdateLearnerSeen(ctx, existing.ID)
		return existing, nil
	}
	if !schema.IsCode(err, schema.ErrCodeNotFound) {
		return nil, err
	}

	learner := &store.Learner{ID: uuid.NewString(), Name: name, Metadata: metadata}
	if err := s.RegisterLearner(ctx, learner); err != nil {
		return nil, err
	}
	return s.GetLearner(ctx, learner.ID)
}
