// Package domain contains persistence models for the per-message tally ledger.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// MessageRecord stores the authoritative symbol count for a single message.
// Rows are never deleted; edits update the count in place.
type MessageRecord struct {
	ChatID      int64             `gorm:"primaryKey;autoIncrement:false"`
	MessageID   int64             `gorm:"primaryKey;autoIncrement:false"`
	UserID      *int64            `gorm:"index:idx_messages_chat_user"`
	SymbolCount int64             `gorm:"not null;default:0"`
	Surfaces    datatypes.JSONMap `gorm:"type:jsonb"` // content snapshot
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MessageRecord) TableName() string { return "messages" }
