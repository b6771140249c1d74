package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
	"github.com/hivelabs/hivetally/internal/config"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Config  config.Config
	Policy  *config.TallyPolicyHolder
	Repo    exclusiondomain.Repository
	AggRepo aggregatedomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	cfg     config.Config
	policy  *config.TallyPolicyHolder
	repo    exclusiondomain.Repository
	aggRepo aggregatedomain.Repository
}

func New(p Params) exclusiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("exclusion.service"),
		genID:   p.GenID,
		cfg:     p.Config,
		policy:  p.Policy,
		repo:    p.Repo,
		aggRepo: p.AggRepo,
	}
}

func (s *Service) ProposeFreeze(ctx context.Context, actorID, targetUserID int64, displayName string) (*exclusiondomain.Proposal, error) {
	return s.propose(ctx, actorID, targetUserID, displayName, exclusiondomain.ActionFreeze)
}

func (s *Service) ProposeUnfreeze(ctx context.Context, actorID, targetUserID int64, displayName string) (*exclusiondomain.Proposal, error) {
	return s.propose(ctx, actorID, targetUserID, displayName, exclusiondomain.ActionUnfreeze)
}

func (s *Service) propose(ctx context.Context, actorID, targetUserID int64, displayName, action string) (*exclusiondomain.Proposal, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if targetUserID <= 0 {
		return nil, exclusiondomain.ErrInvalidTarget
	}

	now := time.Now().UTC()
	proposal := &exclusiondomain.Proposal{
		ID:           s.genID.Generate(),
		Action:       action,
		TargetUserID: targetUserID,
		DisplayName:  strings.TrimSpace(displayName),
		ProposedBy:   actorID,
		Status:       exclusiondomain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.InsertProposal(ctx, s.db, proposal); err != nil {
		return nil, err
	}

	s.log.Info("proposal staged",
		zap.Int64("proposal_id", int64(proposal.ID)),
		zap.String("action", action),
		zap.Int64("target_user_id", targetUserID),
	)
	return proposal, nil
}

// Confirm applies a pending proposal. Confirming an already applied proposal
// returns it unchanged.
func (s *Service) Confirm(ctx context.Context, actorID int64, proposalID int64) (*exclusiondomain.Proposal, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	proposal, err := s.repo.FindProposal(ctx, s.db, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, exclusiondomain.ErrProposalNotFound
	}

	switch proposal.Status {
	case exclusiondomain.StatusApplied:
		return proposal, nil
	case exclusiondomain.StatusRejected:
		return nil, exclusiondomain.ErrProposalClosed
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch proposal.Action {
		case exclusiondomain.ActionFreeze:
			if err := s.applyFreeze(ctx, tx, proposal); err != nil {
				return err
			}
		case exclusiondomain.ActionUnfreeze:
			if _, err := s.repo.DeleteFrozen(ctx, tx, proposal.TargetUserID); err != nil {
				return err
			}
		default:
			return exclusiondomain.ErrInvalidAction
		}
		return s.repo.UpdateProposalStatus(ctx, tx, proposalID, exclusiondomain.StatusApplied)
	})
	if err != nil {
		return nil, err
	}

	proposal.Status = exclusiondomain.StatusApplied
	s.log.Info("proposal applied",
		zap.Int64("proposal_id", proposalID),
		zap.String("action", proposal.Action),
		zap.Int64("target_user_id", proposal.TargetUserID),
	)
	return proposal, nil
}

func (s *Service) applyFreeze(ctx context.Context, tx *gorm.DB, proposal *exclusiondomain.Proposal) error {
	_, err := s.repo.InsertFrozen(ctx, tx, &exclusiondomain.FrozenUser{
		UserID:      proposal.TargetUserID,
		DisplayName: proposal.DisplayName,
		FrozenAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if !s.policy.Get().FreezeZeroesHistory {
		return nil
	}

	// Retroactive zeroing goes through the same additive delta path as
	// regular tally updates.
	entries, err := s.aggRepo.TotalsByUser(ctx, tx, proposal.TargetUserID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Total == 0 {
			continue
		}
		if err := s.aggRepo.ApplyDelta(ctx, tx, entry.ChatID, entry.UserID, -entry.Total, ""); err != nil {
			return err
		}
	}
	return nil
}

// Reject closes a pending proposal without applying it. Rejecting an already
// rejected proposal returns it unchanged.
func (s *Service) Reject(ctx context.Context, actorID int64, proposalID int64) (*exclusiondomain.Proposal, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	proposal, err := s.repo.FindProposal(ctx, s.db, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, exclusiondomain.ErrProposalNotFound
	}

	switch proposal.Status {
	case exclusiondomain.StatusRejected:
		return proposal, nil
	case exclusiondomain.StatusApplied:
		return nil, exclusiondomain.ErrProposalClosed
	}

	if err := s.repo.UpdateProposalStatus(ctx, s.db, proposalID, exclusiondomain.StatusRejected); err != nil {
		return nil, err
	}
	proposal.Status = exclusiondomain.StatusRejected
	return proposal, nil
}

func (s *Service) IsFrozen(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsFrozen(ctx, s.db, userID)
}

func (s *Service) ListFrozen(ctx context.Context) ([]exclusiondomain.FrozenUser, error) {
	return s.repo.ListFrozen(ctx, s.db)
}

func (s *Service) ListPending(ctx context.Context) ([]exclusiondomain.Proposal, error) {
	return s.repo.ListProposals(ctx, s.db, exclusiondomain.StatusPending)
}

func (s *Service) requireAdmin(actorID int64) error {
	if actorID == 0 || actorID != s.cfg.AdminUserID {
		return exclusiondomain.ErrNotAdmin
	}
	return nil
}
