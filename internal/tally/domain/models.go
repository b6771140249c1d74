// Package domain defines the message events consumed by the tally engine.
package domain

import (
	"context"
	"errors"
)

// ContentSurfaces is every part of a message the counted symbol can appear in.
type ContentSurfaces struct {
	Text         string `json:"text"`
	Caption      string `json:"caption"`
	StickerEmoji string `json:"sticker_emoji"`
}

// Event is a message creation or edit as seen by a transport.
type Event struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int64           `json:"message_id"`
	UserID      *int64          `json:"user_id"`
	SenderName  string          `json:"sender_name"`
	Surfaces    ContentSurfaces `json:"surfaces"`
}

// Service applies message events to the ledger and the running aggregates.
type Service interface {
	// OnMessageCreated records a new message. Duplicate deliveries of the
	// same (chat, message) are no-ops; the first write wins.
	OnMessageCreated(ctx context.Context, event Event) error

	// OnMessageEdited re-counts an edited message and corrects the
	// aggregates by the difference. Edits of unseen messages are treated
	// as creations.
	OnMessageEdited(ctx context.Context, event Event) error
}

var (
	ErrInvalidChat    = errors.New("invalid_chat")
	ErrInvalidMessage = errors.New("invalid_message")

	// ErrEditContention reports an edit that kept losing the guarded ledger
	// write to concurrent edits of the same message. The event is dropped;
	// the winning edits already carry the latest content.
	ErrEditContention = errors.New("edit_contention")
)
