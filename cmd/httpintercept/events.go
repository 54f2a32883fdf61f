package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/logging"
)

type eventsFormat int

const (
	eventsJSONL eventsFormat = iota + 1
	eventsSQLite
)

func eventsFormatOf(path string) (eventsFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return eventsJSONL, nil
	case ".db", ".sqlite", ".sqlite3":
		return eventsSQLite, nil
	default:
		return 0, errx.With(ErrEventsFormat, ": %q (want .jsonl or .db)", path)
	}
}

// newEmitter opens the events sink at path. An empty path disables events
// and returns a nil emitter.
func newEmitter(path, runID, source string) (*logging.Emitter, error) {
	if path == "" {
		return nil, nil
	}
	format, err := eventsFormatOf(path)
	if err != nil {
		return nil, err
	}

	var sink logging.Sink
	switch format {
	case eventsJSONL:
		sink, err = logging.NewJSONLWriter(path)
	case eventsSQLite:
		sink, err = logging.NewSQLiteSink(path)
	}
	if err != nil {
		return nil, err
	}

	if runID == "" {
		runID = uuid.NewString()
	}
	return logging.NewEmitter(logging.EmitterConfig{RunID: runID, Source: source}, sink), nil
}

// readEvents returns the last limit events recorded at path.
func readEvents(ctx context.Context, path string, limit int) ([]logging.Event, error) {
	if path == "" {
		return nil, ErrNoEventsFile
	}
	format, err := eventsFormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == eventsJSONL {
		return logging.ReadJSONL(ctx, path, limit)
	}

	sink, err := logging.NewSQLiteSink(path)
	if err != nil {
		return nil, err
	}
	defer sink.Close()
	return sink.Recent(ctx, limit)
}
