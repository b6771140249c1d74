// Package domain defines the read-side facade over tally aggregates.
package domain

import (
	"context"
	"errors"

	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
)

// Service answers total and leaderboard queries from the running aggregates.
type Service interface {
	// GetTotal returns the chat-wide total. Unknown chats total zero.
	GetTotal(ctx context.Context, chatID int64) (int64, error)

	// GetTop returns the leaderboard, largest totals first, ties broken by
	// ascending user id. A zero limit falls back to the policy default.
	GetTop(ctx context.Context, chatID int64, limit int) ([]aggregatedomain.Row, error)

	// GetUserTotal returns one user's total in a chat, zero when absent.
	GetUserTotal(ctx context.Context, chatID, userID int64) (int64, error)
}

var ErrInvalidLimit = errors.New("invalid_limit")
