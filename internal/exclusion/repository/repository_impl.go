package repository

import (
	"context"
	"errors"
	"time"

	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type registryRepo struct{}

func Provide() exclusiondomain.Repository {
	return &registryRepo{}
}

func (r *registryRepo) InsertFrozen(ctx context.Context, db *gorm.DB, user *exclusiondomain.FrozenUser) (bool, error) {
	if user == nil {
		return false, errors.New("frozen user is required")
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *registryRepo) DeleteFrozen(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	result := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&exclusiondomain.FrozenUser{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *registryRepo) IsFrozen(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&exclusiondomain.FrozenUser{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *registryRepo) ListFrozen(ctx context.Context, db *gorm.DB) ([]exclusiondomain.FrozenUser, error) {
	var users []exclusiondomain.FrozenUser
	err := db.WithContext(ctx).
		Order("frozen_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *registryRepo) InsertProposal(ctx context.Context, db *gorm.DB, proposal *exclusiondomain.Proposal) error {
	if proposal == nil {
		return errors.New("proposal is required")
	}
	return db.WithContext(ctx).Create(proposal).Error
}

func (r *registryRepo) FindProposal(ctx context.Context, db *gorm.DB, id int64) (*exclusiondomain.Proposal, error) {
	var proposal exclusiondomain.Proposal
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&proposal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *registryRepo) UpdateProposalStatus(ctx context.Context, db *gorm.DB, id int64, status string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE freeze_proposals SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *registryRepo) ListProposals(ctx context.Context, db *gorm.DB, status string) ([]exclusiondomain.Proposal, error) {
	query := db.WithContext(ctx).Model(&exclusiondomain.Proposal{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var proposals []exclusiondomain.Proposal
	if err := query.Order("created_at ASC").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}
