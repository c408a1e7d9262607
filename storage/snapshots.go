// Package storage persists daily feed snapshots, the processed-mention
// ledger, and the interaction log.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"rag-toxiv/feed"
)

// Stats is the per-snapshot announcement breakdown.
type Stats struct {
	NewSubmissions int `json:"new_submissions"`
	CrossLists     int `json:"cross_lists"`
	Replacements   int `json:"replacements"`
	Total          int `json:"total"`
}

// Snapshot is one persisted fetch result for a (category, date) pair.
type Snapshot struct {
	Category    string       `json:"category"`
	FetchedAt   time.Time    `json:"fetched_at"`
	FeedUpdated string       `json:"feed_updated"`
	Stats       Stats        `json:"stats"`
	Papers      []feed.Paper `json:"papers"`
}

// NewSnapshot builds a Snapshot from a retrieved feed. New submissions come
// before cross-listings in the paper sequence.
func NewSnapshot(f *feed.Feed, fetchedAt time.Time) *Snapshot {
	papers := make([]feed.Paper, 0, f.EntryCount())
	papers = append(papers, f.NewSubmissions...)
	papers = append(papers, f.CrossLists...)
	return &Snapshot{
		Category:    f.Category,
		FetchedAt:   fetchedAt.UTC(),
		FeedUpdated: f.Updated,
		Stats: Stats{
			NewSubmissions: len(f.NewSubmissions),
			CrossLists:     len(f.CrossLists),
			Replacements:   f.NumReplacements,
			Total:          f.Total(),
		},
		Papers: papers,
	}
}

// FileInfo describes one stored snapshot file.
type FileInfo struct {
	Name  string
	Path  string
	Size  int64
	Empty bool
}

// SnapshotStore keeps one JSON file per (date, category) under a single
// directory. A re-fetch on the same upstream date overwrites the previous
// file: latest wins.
type SnapshotStore struct {
	dir string

	// Now is the clock used for age-based cleanup; replaceable in tests.
	Now func() time.Time
}

// NewSnapshotStore returns a store rooted at dir. The directory is created
// lazily on the first save.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir, Now: time.Now}
}

// Dir returns the storage directory.
func (s *SnapshotStore) Dir() string { return s.dir }

// Filename derives the snapshot filename from the upstream-reported update
// timestamp and the category, with periods replaced by underscores.
func (s *SnapshotStore) Filename(snap *Snapshot) (string, error) {
	updated, err := dateparse.ParseAny(snap.FeedUpdated)
	if err != nil {
		return "", fmt.Errorf("storage: parsing feed_updated %q: %w", snap.FeedUpdated, err)
	}
	return fmt.Sprintf("%s_%s.json", updated.Format("2006-01-02"), catToFile(snap.Category)), nil
}

// Save writes the snapshot to its computed path, creating the directory if
// absent. In dry-run mode it reports the would-be path without writing.
func (s *SnapshotStore) Save(snap *Snapshot, dryRun bool) (string, error) {
	name, err := s.Filename(snap)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)

	if dryRun {
		slog.Info("would save snapshot", "papers", len(snap.Papers), "path", path)
		return path, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: creating data dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encoding snapshot: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a torn file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("storage: renaming snapshot: %w", err)
	}

	slog.Info("saved snapshot", "papers", len(snap.Papers), "path", path)
	return path, nil
}

// IsEmpty reports whether the stored paper sequence at path is empty. A
// corrupt or unreadable file counts as non-empty: conservative callers must
// never treat undecipherable data as deletable filler.
func (s *SnapshotStore) IsEmpty(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false
	}
	return len(snap.Papers) == 0
}

// CleanupByAge deletes every matching file whose filename date is strictly
// older than now minus days. Files with an unparseable date prefix are
// skipped with a warning. Returns the number of files deleted (or, in
// dry-run, that would be deleted).
func (s *SnapshotStore) CleanupByAge(days int, category string, dryRun bool) (int, error) {
	files, err := s.glob(category)
	if err != nil {
		return 0, err
	}

	cutoff := s.Now().UTC().AddDate(0, 0, -days)
	cutoffDay := cutoff.Truncate(24 * time.Hour)
	deleted := 0

	for _, path := range files {
		name := filepath.Base(path)
		fileDate, err := datePrefix(name)
		if err != nil {
			slog.Warn("skipping file with invalid date prefix", "file", name)
			continue
		}

		if !fileDate.Before(cutoffDay) {
			continue
		}

		if dryRun {
			slog.Info("would delete", "file", name)
		} else {
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("storage: deleting %s: %w", name, err)
			}
			slog.Info("deleted", "file", name)
		}
		deleted++
	}

	return deleted, nil
}

// CleanupByRetention keeps the maxFiles newest files per category and deletes
// the rest. With skipEmpty, empty snapshots neither count toward the limit
// nor become deletion candidates; they persist indefinitely under this
// policy. Independent of CleanupByAge and not composed with it.
func (s *SnapshotStore) CleanupByRetention(maxFiles int, category string, skipEmpty, dryRun bool) (int, error) {
	var categories []string
	if category != "" {
		categories = []string{category}
	} else {
		var err error
		categories, err = s.Categories()
		if err != nil {
			return 0, err
		}
	}

	total := 0
	for _, cat := range categories {
		files, err := s.glob(cat)
		if err != nil {
			return total, err
		}
		// Newest first by filename date prefix.
		sort.Sort(sort.Reverse(sort.StringSlice(files)))

		kept := 0
		for _, path := range files {
			name := filepath.Base(path)
			if skipEmpty && s.IsEmpty(path) {
				continue
			}
			if kept < maxFiles {
				kept++
				continue
			}
			if dryRun {
				slog.Info("would delete", "category", cat, "file", name)
			} else {
				if err := os.Remove(path); err != nil {
					return total, fmt.Errorf("storage: deleting %s: %w", name, err)
				}
				slog.Info("deleted", "category", cat, "file", name)
			}
			total++
		}
	}

	return total, nil
}

// List enumerates matching snapshot files, oldest first.
func (s *SnapshotStore) List(category string) ([]FileInfo, error) {
	files, err := s.glob(category)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	infos := make([]FileInfo, 0, len(files))
	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", path, err)
		}
		infos = append(infos, FileInfo{
			Name:  filepath.Base(path),
			Path:  path,
			Size:  fi.Size(),
			Empty: s.IsEmpty(path),
		})
	}
	return infos, nil
}

// LoadRecent returns the papers from the maxFiles newest snapshot files for
// category. With skipEmpty, empty files are passed over without counting.
func (s *SnapshotStore) LoadRecent(category string, maxFiles int, skipEmpty bool) ([]feed.Paper, error) {
	files, err := s.glob(category)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	var papers []feed.Paper
	loaded := 0
	for _, path := range files {
		if loaded >= maxFiles {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("storage: reading %s: %w", path, err)
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("storage: decoding %s: %w", path, err)
		}
		if len(snap.Papers) == 0 && skipEmpty {
			continue
		}
		papers = append(papers, snap.Papers...)
		loaded++
	}
	return papers, nil
}

// Categories lists every category that has at least one stored file, sorted.
func (s *SnapshotStore) Categories() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("storage: listing files: %w", err)
	}

	seen := map[string]bool{}
	for _, path := range files {
		if cat, ok := catFromFile(filepath.Base(path)); ok {
			seen[cat] = true
		}
	}

	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats, nil
}

func (s *SnapshotStore) glob(category string) ([]string, error) {
	pattern := "*.json"
	if category != "" {
		pattern = "*_" + catToFile(category) + ".json"
	}
	files, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("storage: listing files: %w", err)
	}
	return files, nil
}

// datePrefix parses the YYYY-MM-DD prefix of a snapshot filename.
func datePrefix(name string) (time.Time, error) {
	if len(name) < 10 {
		return time.Time{}, fmt.Errorf("name too short")
	}
	return time.ParseInLocation("2006-01-02", name[:10], time.UTC)
}

func catToFile(category string) string {
	return strings.ReplaceAll(category, ".", "_")
}

// catFromFile recovers the category from a filename of the form
// YYYY-MM-DD_cs_LG.json.
func catFromFile(name string) (string, bool) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return "", false
	}
	cat := strings.TrimSuffix(parts[1], ".json")
	return strings.ReplaceAll(cat, "_", "."), true
}
