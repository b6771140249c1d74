package repository

import (
	"context"
	"time"

	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tallyRepo struct{}

func Provide() aggregatedomain.Repository {
	return &tallyRepo{}
}

func (r *tallyRepo) ApplyDelta(ctx context.Context, db *gorm.DB, chatID, userID, delta int64, displayName string) error {
	entry := aggregatedomain.Entry{
		ChatID:      chatID,
		UserID:      userID,
		DisplayName: displayName,
		Total:       delta,
		UpdatedAt:   time.Now().UTC(),
	}

	// Additive upsert. The dialect renders the conflict clause itself, so the
	// same call works on postgres, mysql and sqlite.
	assignments := map[string]interface{}{
		"total":      gorm.Expr("total + ?", delta),
		"updated_at": entry.UpdatedAt,
	}
	if displayName != "" {
		assignments["display_name"] = displayName
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&entry).Error
}

func (r *tallyRepo) SumByChat(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total), 0) FROM tallies WHERE chat_id = ?`,
		chatID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *tallyRepo) TopByChat(ctx context.Context, db *gorm.DB, chatID int64, limit int) ([]aggregatedomain.Row, error) {
	var rows []aggregatedomain.Row
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, display_name, total
		 FROM tallies
		 WHERE chat_id = ?
		 ORDER BY total DESC, user_id ASC
		 LIMIT ?`,
		chatID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *tallyRepo) FindTotal(ctx context.Context, db *gorm.DB, chatID, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total), 0) FROM tallies WHERE chat_id = ? AND user_id = ?`,
		chatID,
		userID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *tallyRepo) TotalsByUser(ctx context.Context, db *gorm.DB, userID int64) ([]aggregatedomain.Entry, error) {
	var entries []aggregatedomain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT chat_id, user_id, display_name, total, updated_at
		 FROM tallies
		 WHERE user_id = ?
		 ORDER BY chat_id ASC`,
		userID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
