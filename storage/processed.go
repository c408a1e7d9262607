package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ProcessedSet is the durable idempotency ledger of handled mention IDs.
// Entries are only ever added. The file is a single JSON array of strings,
// rewritten whole on every save via a temp-file rename, so a crash between
// saves can lose at most the additions since the last Save, never corrupt
// the file. Single-instance only: two processes saving concurrently can
// still clobber each other's additions.
type ProcessedSet struct {
	path string
	ids  map[string]struct{}
}

// LoadProcessedSet reads the ledger at path. A missing file yields an empty
// set.
func LoadProcessedSet(path string) (*ProcessedSet, error) {
	p := &ProcessedSet{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading processed set: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("storage: decoding processed set: %w", err)
	}
	for _, id := range ids {
		p.ids[id] = struct{}{}
	}
	return p, nil
}

// Contains reports whether id has already been handled.
func (p *ProcessedSet) Contains(id string) bool {
	_, ok := p.ids[id]
	return ok
}

// Add records id as handled. It does not persist; call Save.
func (p *ProcessedSet) Add(id string) {
	p.ids[id] = struct{}{}
}

// Len returns the number of recorded IDs.
func (p *ProcessedSet) Len() int { return len(p.ids) }

// Save rewrites the ledger file.
func (p *ProcessedSet) Save() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("storage: creating log dir: %w", err)
	}

	ids := make([]string, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("storage: encoding processed set: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing processed set: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("storage: renaming processed set: %w", err)
	}
	return nil
}
