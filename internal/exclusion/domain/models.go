// Package domain contains the frozen-user registry and its proposal workflow.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// FrozenUser marks a user whose future contributions are suppressed.
type FrozenUser struct {
	UserID      int64     `gorm:"primaryKey;autoIncrement:false"`
	DisplayName string    `gorm:"type:text;not null;default:''"`
	FrozenAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FrozenUser) TableName() string { return "frozen_users" }

// Proposal actions.
const (
	ActionFreeze   = "freeze"
	ActionUnfreeze = "unfreeze"
)

// Proposal statuses.
const (
	StatusPending  = "pending"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

// Proposal is a pending registry change awaiting admin confirmation.
type Proposal struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Action       string       `gorm:"type:text;not null"`
	TargetUserID int64        `gorm:"not null"`
	DisplayName  string       `gorm:"type:text;not null;default:''"`
	ProposedBy   int64        `gorm:"not null"`
	Status       string       `gorm:"type:text;not null;default:'pending'"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Proposal) TableName() string { return "freeze_proposals" }
