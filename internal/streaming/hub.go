// Package streaming fans game events out to live subscribers, such as a
// front-end that pushes badge notifications to its client.
package streaming

import (
	"context"
	"errors"

	"github.com/rendis/flowgame/pkg/schema"
)

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for game events.
type EventHub interface {
	Publish(ctx context.Context, event schema.GameEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan schema.GameEvent, func(), error)
}

// Sink receives game events. game.EventSink has the same shape.
type Sink interface {
	Record(ctx context.Context, ev schema.GameEvent) error
}

// Tee returns a sink that records to every sink in order. Every sink sees
// the event even when an earlier one fails; the errors are joined.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Record(ctx context.Context, ev schema.GameEvent) error {
	var errs []error
	for _, s := range t {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
