// Package domain contains persistence models for running tally aggregates.
package domain

import "time"

// Entry is the running total for a (chat, user) pair. Totals only ever move
// through additive deltas so replays and edits stay consistent.
type Entry struct {
	ChatID      int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID      int64     `gorm:"primaryKey;autoIncrement:false"`
	DisplayName string    `gorm:"type:text;not null;default:''"`
	Total       int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "tallies" }

// Row is a leaderboard row.
type Row struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Total       int64  `json:"total"`
}
