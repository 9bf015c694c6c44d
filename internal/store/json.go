package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONReplyStore backs ReplyStore with a flat postID → timestamp JSON file.
// The whole structure is loaded on construction and rewritten atomically on
// every MarkReplied, so the record is on disk before the call returns.
type JSONReplyStore struct {
	path    string
	replied map[string]string // postID -> RFC3339 replied-at
}

// NewJSONReplyStore loads (or initializes) the store at path. A missing
// file is an empty store; an unreadable or malformed file is an error, not
// a silent reset, to avoid re-replying to everything after corruption.
func NewJSONReplyStore(path string) (*JSONReplyStore, error) {
	s := &JSONReplyStore{path: path, replied: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reply store: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.replied); err != nil {
			return nil, fmt.Errorf("decode reply store %s: %w", path, err)
		}
	}
	return s, nil
}

// Len reports how many posts are recorded as replied.
func (s *JSONReplyStore) Len() int { return len(s.replied) }

// IsReplied implements ReplyStore.
func (s *JSONReplyStore) IsReplied(_ context.Context, postID string) (bool, error) {
	_, ok := s.replied[postID]
	return ok, nil
}

// MarkReplied implements ReplyStore. The first replied-at wins; repeating
// the call for a known id does not rewrite the file.
func (s *JSONReplyStore) MarkReplied(_ context.Context, postID string) error {
	if _, ok := s.replied[postID]; ok {
		return nil
	}
	s.replied[postID] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(s.replied, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reply store: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		// Roll back the in-memory entry so a later retry rewrites the file.
		delete(s.replied, postID)
		return fmt.Errorf("persist reply store: %w", err)
	}
	return nil
}
