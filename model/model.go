// Package model defines the domain entities the sync engine moves around:
// users, events, discussion threads, and messages. Every entity carries an
// immutable unique id plus createdAt/updatedAt timestamps; updatedAt
// strictly increases on every mutation.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewID returns a new time-ordered entity id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Media is an uploaded asset referenced by users and events.
type Media struct {
	bun.BaseModel `bun:"table:media,alias:md"`

	ID        string    `bun:"id,pk" json:"id"`
	URL       string    `bun:"url" json:"url"`
	MimeType  string    `bun:"mime_type" json:"mimeType"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// UserMeta is the structured sub-document on a user. Interests receive
// {added, deleted} deltas on update rather than blind overwrites.
type UserMeta struct {
	HasOnboarded bool     `json:"hasOnboarded"`
	Interests    []string `json:"interests,omitempty"`
}

// User is an account holder. Email and username are alternate unique keys
// and double as secondary cache keyspaces.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name" json:"name"`
	Email     string    `bun:"email" json:"email"`
	Username  string    `bun:"username" json:"username,omitempty"`
	MediaID   string    `bun:"media_id" json:"mediaId,omitempty"`
	Media     *Media    `bun:"-" json:"media,omitempty"`
	Meta      UserMeta  `bun:"meta,type:jsonb" json:"meta"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// Event is a gathering users organize or attend.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name" json:"name"`
	Type      string    `bun:"type" json:"type"`
	CreatorID string    `bun:"creator_id" json:"creatorId"`
	Creator   *User     `bun:"-" json:"creator,omitempty"`
	Capacity  int       `bun:"capacity" json:"capacity,omitempty"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// Thread is a discussion attached to an event. Its event is the scope a
// thread change event is applied to on clients.
type Thread struct {
	bun.BaseModel `bun:"table:threads,alias:t"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id" json:"eventId"`
	Type      string    `bun:"type" json:"type"`
	Status    string    `bun:"status" json:"status,omitempty"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// Scope returns the collection a thread change event patches on clients.
func (t Thread) Scope() string { return t.EventID }

// Message is a chat message inside a thread, optionally replying to a
// parent message (sub-messages shown in drill-down sheets).
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        string    `bun:"id,pk" json:"id"`
	ThreadID  string    `bun:"thread_id" json:"threadId"`
	ParentID  string    `bun:"parent_id,nullzero" json:"parentId,omitempty"`
	UserID    string    `bun:"user_id" json:"userId"`
	User      *User     `bun:"-" json:"user,omitempty"`
	Content   string    `bun:"content" json:"content"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// Scope returns the collection a message change event patches on clients:
// replies patch their parent message's collection, top-level messages patch
// the thread's.
func (m Message) Scope() string {
	if m.ParentID != "" {
		return m.ParentID
	}
	return m.ThreadID
}
