package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// CredFile is a flat key → value JSON file holding long-lived credentials,
// primarily the forum session token. Reads come from the in-memory copy
// loaded at construction; Set writes through to disk synchronously.
type CredFile struct {
	path   string
	values map[string]string
}

// NewCredFile loads the credential file at path. A missing, empty, or
// malformed file is treated as an empty store: the first run has nothing to
// load, and a corrupt token file just forces a fresh login.
func NewCredFile(path string) *CredFile {
	c := &CredFile{path: path, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil || len(raw) == 0 {
		return c
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err == nil {
		c.values = values
	}
	return c
}

// Get returns the stored value for key, or def when absent.
func (c *CredFile) Get(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Set stores key=value and flushes the whole file atomically before
// returning. Prior values for other keys are preserved.
func (c *CredFile) Set(key, value string) error {
	old, had := c.values[key]
	c.values[key] = value

	data, err := json.MarshalIndent(c.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential store: %w", err)
	}
	if err := writeFileAtomic(c.path, data, 0o600); err != nil {
		if had {
			c.values[key] = old
		} else {
			delete(c.values, key)
		}
		return fmt.Errorf("persist credential store: %w", err)
	}
	return nil
}
