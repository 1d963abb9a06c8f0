package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Decode reads a catalog document. Unknown fields are ignored and absent
// optional fields take their defaults.
func Decode(r io.Reader) ([]*Card, error) {
	var cards []*Card
	if err := json.NewDecoder(r).Decode(&cards); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	out := cards[:0]
	for _, c := range cards {
		if c == nil {
			continue
		}
		c.normalize()
		out = append(out, c)
	}
	return out, nil
}

// ReadFile reads a catalog file.
func ReadFile(path string) ([]*Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// WriteFile writes cards to path atomically.
func WriteFile(path string, cards []*Card) error {
	if cards == nil {
		cards = []*Card{}
	}
	return writeJSON(path, cards)
}

// WriteUnmatched writes the unmatched rows to path. With no rows, a file
// left over from a previous run is removed instead.
func WriteUnmatched(path string, unmatched []Unmatched) error {
	if len(unmatched) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale unmatched file: %w", err)
		}
		return nil
	}
	return writeJSON(path, unmatched)
}

func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
