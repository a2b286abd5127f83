package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"volmint/internal/model"
)

// JsonlJournal is an append-only lifecycle log, one JSON event per line.
// It is the source of truth the ledger is replayed from, so writes keep
// strict append order.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// AppendEvents appends a batch of lifecycle events.
func (j *JsonlJournal) AppendEvents(events []model.LifecycleEvent) error {
	if len(events) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("journal dir: %w", err)
		}
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal open: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("journal write: %w", err)
		}
	}

	return nil
}

// ReadJournal loads every lifecycle event from a JSONL file in append
// order. A missing file yields an empty slice.
func ReadJournal(path string) ([]model.LifecycleEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal open: %w", err)
	}
	defer file.Close()

	var events []model.LifecycleEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var event model.LifecycleEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal read: %w", err)
	}
	return events, nil
}
