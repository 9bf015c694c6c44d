// Package store provides the durable run-to-run state of the automation:
// the replied-post deduplication store (SQLite or flat JSON file) and the
// flat key/value credential file holding the session token.
//
// Both stores are owned exclusively by the single process instance running
// a sweep; cross-process concurrent runs are not guarded against.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/wkchan/forum-reply-bot/internal/repo"
)

// ReplyStore is the deduplication contract: the central correctness
// property "never reply to the same post twice across runs" is enforced by
// implementations of this interface, not elsewhere.
type ReplyStore interface {
	// IsReplied reports whether postID was handled in any prior run.
	// Unknown ids report false.
	IsReplied(ctx context.Context, postID string) (bool, error)

	// MarkReplied durably records postID as handled before returning.
	// Repeated calls for the same id are side-effect-safe.
	MarkReplied(ctx context.Context, postID string) error
}

// SQLiteReplyStore backs ReplyStore with the replied_posts table.
type SQLiteReplyStore struct {
	DB *gorm.DB
}

// NewSQLiteReplyStore wraps an open GORM handle. The schema must already be
// migrated (repo.AutoMigrate).
func NewSQLiteReplyStore(db *gorm.DB) *SQLiteReplyStore {
	return &SQLiteReplyStore{DB: db}
}

// IsReplied implements ReplyStore.
func (s *SQLiteReplyStore) IsReplied(ctx context.Context, postID string) (bool, error) {
	return repo.IsReplied(ctx, s.DB, postID)
}

// MarkReplied implements ReplyStore.
func (s *SQLiteReplyStore) MarkReplied(ctx context.Context, postID string) error {
	return repo.MarkReplied(ctx, s.DB, postID)
}
