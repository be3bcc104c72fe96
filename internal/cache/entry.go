package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/igr88/archetect/internal/userdata"
)

const (
	entryFileName = "entry.json"
	treePrefix    = "tree-"

	// DefaultMaxAge is how old an entry may be before `cache list` reports it
	// as outdated.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// Entry is the metadata of one cache slot. The slot's current tree is the
// directory named by Tree; replacing entry.json is what swaps a new tree in.
type Entry struct {
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Ref       string    `json:"ref,omitempty"`
	Commit    string    `json:"commit"`
	Tree      string    `json:"tree"`
	Previous  string    `json:"previous,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`

	// Path is the absolute path of the current tree.
	Path string `json:"-"`
	// Key is the slot directory name.
	Key string `json:"-"`
	// Stale is set when a refresh failed and this older copy was used.
	Stale bool `json:"-"`
}

// Outdated reports whether the entry was fetched more than maxAge before now.
func (e *Entry) Outdated(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.FetchedAt) > maxAge
}

// loadEntry reads the metadata of slot. It returns nil, nil when the slot
// has never been populated.
func loadEntry(slot string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(slot, entryFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing cache entry: %w", err)
	}
	e.Key = filepath.Base(slot)
	e.Path = filepath.Join(slot, e.Tree)
	if _, err := os.Stat(e.Path); err != nil {
		// A metadata file pointing at a missing tree is treated as no entry.
		return nil, nil
	}
	return &e, nil
}

// saveEntry replaces the slot metadata atomically: the new content is
// written to a temp file and renamed over entry.json.
func saveEntry(slot string, e *Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(slot, entryFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Chmod(tmpName, userdata.FilePermNormal); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(slot, entryFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalizing cache entry: %w", err)
	}
	return nil
}
