// Package devseed loads JSON seed files for the in-memory ordered data store
// used by the mock runtime mode and the sandbox.
package devseed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// OrderedSeedEntry describes one entry to preload. An empty Scope means
// "global"; a zero UniverseID applies to whatever universe the caller seeds.
type OrderedSeedEntry struct {
	UniverseID int64  `json:"universeId,omitempty"`
	Store      string `json:"store"`
	Scope      string `json:"scope,omitempty"`
	ID         string `json:"id"`
	Value      int64  `json:"value"`
}

// LoadOrderedSeed reads a seed file. The file holds either a JSON array of
// entries or an object with an "entries" array.
func LoadOrderedSeed(path string) ([]OrderedSeedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := DecodeOrderedSeed(f)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	return entries, nil
}

// DecodeOrderedSeed decodes seed entries from r and checks that each names a
// store and an id.
func DecodeOrderedSeed(r io.Reader) ([]OrderedSeedEntry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var entries []OrderedSeedEntry
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "":
		return nil, nil
	case strings.HasPrefix(trimmed, "["):
		err = json.Unmarshal([]byte(trimmed), &entries)
	default:
		var doc struct {
			Entries []OrderedSeedEntry `json:"entries"`
		}
		err = json.Unmarshal([]byte(trimmed), &doc)
		entries = doc.Entries
	}
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	for i, e := range entries {
		if strings.TrimSpace(e.Store) == "" {
			return nil, fmt.Errorf("seed entry %d: store is required", i)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("seed entry %d: id is required", i)
		}
	}
	return entries, nil
}
