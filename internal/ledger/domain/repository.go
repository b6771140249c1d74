package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists message records. Callers pass the db handle so ledger
// writes can join a surrounding transaction.
type Repository interface {
	// Insert writes a new record. Returns false when a record for the same
	// (chat, message) already exists; the stored record is left untouched.
	Insert(ctx context.Context, db *gorm.DB, record *MessageRecord) (bool, error)

	// Find loads a record, or nil when absent.
	Find(ctx context.Context, db *gorm.DB, chatID, messageID int64) (*MessageRecord, error)

	// UpdateRecord overwrites the stored count, attributed user, and content
	// snapshot of an existing record, but only while the stored count still
	// equals expectedCount. Returns false when a concurrent writer moved the
	// baseline first; the caller must re-read and recompute its delta.
	UpdateRecord(ctx context.Context, db *gorm.DB, record *MessageRecord, expectedCount int64) (bool, error)
}
