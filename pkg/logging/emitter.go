package logging

import (
	"encoding/json"
	"time"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

// EmitterConfig identifies the run and the command that recorded an event.
type EmitterConfig struct {
	RunID  string // groups the events of one CLI invocation
	Source string // "fetch", "proxy" or a library caller's own label
}

// Emitter turns interception decisions into Events and fans them out to
// sinks. Transports and the proxy handler hold a possibly nil *Emitter and
// skip emission when it is nil.
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter returns an Emitter writing to sinks in order.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	return &Emitter{
		config: cfg,
		sinks:  sinks,
	}
}

// Emit records one decision. rule is the handle of the rule that decided,
// or empty for pass-through; data is JSON-encoded into Event.Data. Writing
// stops at the first sink that fails.
func (e *Emitter) Emit(eventType, summary, rule string, tags []string, data any) error {
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp: time.Now().UTC(),
		RunID:     e.config.RunID,
		Source:    e.config.Source,
		EventType: eventType,
		Summary:   summary,
		Rule:      rule,
		Tags:      tags,
		Data:      rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and reports the first failure.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
