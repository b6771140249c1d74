package domain

import (
	"context"
	"errors"
)

// Service drives the freeze/unfreeze workflow. Every mutation requires the
// configured admin identity; proposals stage the change and Confirm applies it.
type Service interface {
	ProposeFreeze(ctx context.Context, actorID, targetUserID int64, displayName string) (*Proposal, error)
	ProposeUnfreeze(ctx context.Context, actorID, targetUserID int64, displayName string) (*Proposal, error)
	Confirm(ctx context.Context, actorID int64, proposalID int64) (*Proposal, error)
	Reject(ctx context.Context, actorID int64, proposalID int64) (*Proposal, error)

	IsFrozen(ctx context.Context, userID int64) (bool, error)
	ListFrozen(ctx context.Context) ([]FrozenUser, error)
	ListPending(ctx context.Context) ([]Proposal, error)
}

var (
	ErrNotAdmin         = errors.New("not_admin")
	ErrInvalidTarget    = errors.New("invalid_target")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrProposalNotFound = errors.New("proposal_not_found")
	ErrProposalClosed   = errors.New("proposal_closed")
)
