package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists the frozen-user registry and its proposals.
type Repository interface {
	// InsertFrozen adds a user to the registry. Returns false when the user
	// is already frozen.
	InsertFrozen(ctx context.Context, db *gorm.DB, user *FrozenUser) (bool, error)

	// DeleteFrozen removes a user from the registry. Returns false when the
	// user was not frozen.
	DeleteFrozen(ctx context.Context, db *gorm.DB, userID int64) (bool, error)

	// IsFrozen reports registry membership.
	IsFrozen(ctx context.Context, db *gorm.DB, userID int64) (bool, error)

	// ListFrozen returns the registry ordered by freeze time.
	ListFrozen(ctx context.Context, db *gorm.DB) ([]FrozenUser, error)

	InsertProposal(ctx context.Context, db *gorm.DB, proposal *Proposal) error
	FindProposal(ctx context.Context, db *gorm.DB, id int64) (*Proposal, error)
	UpdateProposalStatus(ctx context.Context, db *gorm.DB, id int64, status string) error
	ListProposals(ctx context.Context, db *gorm.DB, status string) ([]Proposal, error)
}
