package hook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cursor records how far the watcher has advanced: the last fully
// processed block and the ledger's id high-water mark at that point.
type Cursor struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	NextTokenID        uint64 `json:"next_token_id"`
	UpdatedAt          string `json:"updated_at"`
}

// CursorStore persists the watch cursor to disk. Saves go through a tmp
// file and rename, so a crash never leaves a torn cursor.
type CursorStore struct {
	path    string
	enabled bool
}

func NewCursorStore(path string, enabled bool) *CursorStore {
	return &CursorStore{path: path, enabled: enabled}
}

func (c *CursorStore) Load() (Cursor, bool, error) {
	if !c.enabled {
		return Cursor{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, fmt.Errorf("stat cursor: %w", err)
	}
	if stat.IsDir() {
		return Cursor{}, false, fmt.Errorf("cursor path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}

	var cur Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return Cursor{}, false, fmt.Errorf("parse cursor: %w", err)
	}

	return cur, true, nil
}

func (c *CursorStore) Save(lastProcessed, nextTokenID uint64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	cur := Cursor{
		LastProcessedBlock: lastProcessed,
		NextTokenID:        nextTokenID,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}

	return nil
}
