package model

import (
	"context"
	"time"
)

// Attachment references a cached document that was mounted on a turn.
type Attachment struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
}

// Turn is one transcript entry. Thoughts holds the internal reasoning and
// tool-call log for assistant turns; it is persisted for reconstruction but
// belongs to a different trust tier than Content.
type Turn struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Thoughts    []string     `json:"thought_process,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Session is the transcript metadata returned by listing endpoints.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Turns     []Turn    `json:"history,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSessionTitle is assigned at creation and replaced at most once by
// the auto-generated title.
const DefaultSessionTitle = "新对话"

// SessionRepository persists ordered transcripts keyed by session id.
// AppendTurn must be serialized per session; sessions are independent.
type SessionRepository interface {
	Create(ctx context.Context, ownerID, title string) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context, ownerID string) ([]*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Rename(ctx context.Context, sessionID, title string) error

	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	TurnCount(ctx context.Context, sessionID string) (int, error)

	// SetTitleOnce assigns the auto-generated title only while the session
	// still carries the default title. Returns true when the write happened.
	SetTitleOnce(ctx context.Context, sessionID, title string) (bool, error)
}
