package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

const (
	// GenesisHash is the hash_prev of the first event of a log.
	GenesisHash = "sha256:genesis"

	// HashPrefix tags every event hash.
	HashPrefix = "sha256:"
)

// Writer stores audit events. Write must set the chain fields and only
// return once the event is durable.
type Writer interface {
	Write(event *Event) error
	Close() error
}

// NopWriter drops every event. It stands in when no audit log is configured.
type NopWriter struct{}

var _ Writer = NopWriter{}

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }

// FileWriter appends events to a JSONL file and fsyncs after each one.
type FileWriter struct {
	mu   sync.Mutex
	f    *os.File
	head string // hash of the last event on disk
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens path for appending. An existing log is replayed
// first: a log whose chain does not verify is never extended.
func NewFileWriter(path string) (*FileWriter, error) {
	head := GenesisHash
	existing, err := os.Open(path)
	switch {
	case err == nil:
		head, _, err = replay(existing)
		_ = existing.Close()
		if err != nil {
			return nil, fmt.Errorf("refusing to extend audit log %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileWriter{f: f, head: head}, nil
}

// Write seals event onto the chain and appends it.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return errors.New("audit log closed")
	}
	if err := event.seal(w.head); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	w.head = event.Hash
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// VerifyChain checks every event of the log at path and returns how many
// events verified before the first broken one.
func VerifyChain(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer f.Close()

	_, n, err := replay(f)
	return n, err
}

// replay walks the chain from the genesis hash. It returns the hash of the
// last valid event and the number of valid events. Blank lines are skipped.
func replay(r io.Reader) (head string, count int, err error) {
	head = GenesisHash
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return head, count, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if err := e.follows(head); err != nil {
			return head, count, fmt.Errorf("line %d: %w", line, err)
		}
		head = e.Hash
		count++
	}
	if err := sc.Err(); err != nil {
		return head, count, fmt.Errorf("scan audit log: %w", err)
	}
	return head, count, nil
}
