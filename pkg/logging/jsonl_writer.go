package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

// JSONLWriter appends events to a file, one JSON object per line.
// Safe for concurrent use.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONLWriter opens path for appending, creating it and its parent
// directories if needed.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	buf := bufio.NewWriter(f)
	return &JSONLWriter{file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write encodes event as one line and flushes it.
func (w *JSONLWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	if err := w.buf.Flush(); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.buf.Flush()
	_ = w.file.Sync()
	if err := w.file.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}

// ReadJSONL returns up to limit of the last events in the file at path,
// oldest first. Blank and malformed lines are skipped.
func ReadJSONL(ctx context.Context, path string, limit int) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	defer f.Close()

	var ring []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		ring = append(ring, ev)
		if limit > 0 && len(ring) > limit {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	return ring, nil
}
