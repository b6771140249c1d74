package repository

import (
	"context"
	"errors"
	"time"

	ledgerdomain "github.com/hivelabs/hivetally/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type messageRepo struct{}

func Provide() ledgerdomain.Repository {
	return &messageRepo{}
}

func (r *messageRepo) Insert(ctx context.Context, db *gorm.DB, record *ledgerdomain.MessageRecord) (bool, error) {
	if record == nil {
		return false, errors.New("message record is required")
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	// First writer wins: a duplicate delivery affects zero rows.
	return result.RowsAffected > 0, nil
}

func (r *messageRepo) Find(ctx context.Context, db *gorm.DB, chatID, messageID int64) (*ledgerdomain.MessageRecord, error) {
	var record ledgerdomain.MessageRecord
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *messageRepo) UpdateRecord(ctx context.Context, db *gorm.DB, record *ledgerdomain.MessageRecord, expectedCount int64) (bool, error) {
	if record == nil {
		return false, errors.New("message record is required")
	}

	var userID any
	if record.UserID != nil {
		userID = *record.UserID
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE messages
		 SET symbol_count = ?,
		     user_id = ?,
		     surfaces = ?,
		     updated_at = ?
		 WHERE chat_id = ? AND message_id = ? AND symbol_count = ?`,
		record.SymbolCount,
		userID,
		record.Surfaces,
		time.Now().UTC(),
		record.ChatID,
		record.MessageID,
		expectedCount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	// Zero rows means the guard failed: another edit landed between our read
	// and this write.
	return result.RowsAffected > 0, nil
}
