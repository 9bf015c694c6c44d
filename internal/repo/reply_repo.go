// Package repo implements the data persistence layer for the deduplication
// store, backed by GORM. This file provides repository functions for the
// ReplyRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only point lookup and
// point insert.
//
// Error semantics:
//   - IsReplied reports false for unknown ids without an error.
//   - MarkReplied is idempotent: a second call for the same id is a no-op
//     and does not error (ON CONFLICT DO NOTHING), leaving the original
//     replied_at untouched.
//   - On DB errors (connectivity, missing table, etc.) the raw gorm error
//     is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wkchan/forum-reply-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across callers.
var ErrNotFound = gorm.ErrRecordNotFound

// IsReplied reports whether a ReplyRecord exists for postID. Unknown ids
// yield (false, nil); only genuine DB failures produce an error.
func IsReplied(ctx context.Context, db *gorm.DB, postID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ReplyRecord{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkReplied inserts a ReplyRecord for postID with the current UTC time.
// The insert is a no-op when a record already exists, so the first
// replied_at always wins. The row is durably committed before return
// (SQLite synchronous=FULL, no write-back caching in GORM).
func MarkReplied(ctx context.Context, db *gorm.DB, postID string) error {
	rec := &domain.ReplyRecord{
		PostID:    postID,
		RepliedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// GetReplied fetches the ReplyRecord for postID, or ErrNotFound.
func GetReplied(ctx context.Context, db *gorm.DB, postID string) (*domain.ReplyRecord, error) {
	var rec domain.ReplyRecord
	err := db.WithContext(ctx).
		Where("post_id = ?", postID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
