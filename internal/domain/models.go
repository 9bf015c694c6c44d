// Package domain defines the persistence model for replied posts and the
// transient value types produced by the forum listing endpoints. ReplyRecord
// is mapped with GORM and forms the durable core of the deduplication layer.
package domain

import "time"

// ReplyRecord marks a forum post as handled. One row exists per post; rows
// are created exactly once, after a reply round-trip succeeds, and are never
// mutated or deleted afterwards.
//
// Fields:
//   - PostID: opaque GUID-like identifier assigned by the forum service,
//     primary key.
//   - RepliedAt: local UTC timestamp of when the reply was recorded.
type ReplyRecord struct {
	PostID    string    `json:"post_id"    gorm:"type:varchar(64);primaryKey"`
	RepliedAt time.Time `json:"replied_at" gorm:"not null"`
}

// TableName returns the database table name for ReplyRecord.
func (ReplyRecord) TableName() string { return "replied_posts" }

// Page is a top-level community grouping rooms, resolved by display name.
type Page struct {
	GUID string
	Name string
}

// Room is a named sub-forum grouping conversations.
type Room struct {
	GUID       string
	Title      string
	TopicCount int
}

// Conversation is a single forum post returned by the listing endpoint.
// It lives only for the duration of one run.
type Conversation struct {
	GUID     string
	RoomGUID string // room the post actually belongs to, may differ from the listing room
	Title    string
	Content  string
	Author   string
	IsLiked  bool
	// PostedAt is the raw ISO-8601 timestamp from the service, kept as a
	// string because an unparsable value must flow into the window filter
	// rather than fail at decode time.
	PostedAt string
}
