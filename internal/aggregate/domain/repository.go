package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository maintains additive running totals. Callers pass the db handle so
// aggregate writes can join the ledger transaction.
type Repository interface {
	// ApplyDelta adds delta to the (chat, user) total, creating the row when
	// absent. A non-empty displayName refreshes the stored name.
	ApplyDelta(ctx context.Context, db *gorm.DB, chatID, userID, delta int64, displayName string) error

	// SumByChat returns the chat-wide total. Unknown chats sum to zero.
	SumByChat(ctx context.Context, db *gorm.DB, chatID int64) (int64, error)

	// TopByChat returns up to limit rows ordered by total descending, ties
	// broken by ascending user id.
	TopByChat(ctx context.Context, db *gorm.DB, chatID int64, limit int) ([]Row, error)

	// FindTotal returns a single user's total, zero when absent.
	FindTotal(ctx context.Context, db *gorm.DB, chatID, userID int64) (int64, error)

	// TotalsByUser returns every per-chat total a user holds.
	TotalsByUser(ctx context.Context, db *gorm.DB, userID int64) ([]Entry, error)
}
