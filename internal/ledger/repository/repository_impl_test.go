package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	ledgerdomain "github.com/hivelabs/hivetally/internal/ledger/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestInsertFirstWriterWins(t *testing.T) {
	repo, db := setupMessageRepo(t)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, db, newMessageRecord(100, 1, 3))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to win")
	}

	inserted, err = repo.Insert(ctx, db, newMessageRecord(100, 1, 9))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate insert to be dropped")
	}

	record, err := repo.Find(ctx, db, 100, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record == nil || record.SymbolCount != 3 {
		t.Fatalf("expected first write preserved, got %+v", record)
	}
}

func TestFindAbsentIsNil(t *testing.T) {
	repo, db := setupMessageRepo(t)

	record, err := repo.Find(context.Background(), db, 100, 404)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil for absent record, got %+v", record)
	}
}

func TestUpdateRecordGuardsOnCount(t *testing.T) {
	repo, db := setupMessageRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, db, newMessageRecord(100, 1, 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Stale guard: a concurrent edit already moved the count away from 5.
	stale := newMessageRecord(100, 1, 7)
	swapped, err := repo.UpdateRecord(ctx, db, stale, 5)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if swapped {
		t.Fatalf("expected stale guard to reject the write")
	}

	record, err := repo.Find(ctx, db, 100, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.SymbolCount != 3 {
		t.Fatalf("expected count untouched at 3, got %d", record.SymbolCount)
	}

	// Matching guard applies.
	fresh := newMessageRecord(100, 1, 7)
	swapped, err = repo.UpdateRecord(ctx, db, fresh, 3)
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if !swapped {
		t.Fatalf("expected matching guard to apply")
	}

	record, err = repo.Find(ctx, db, 100, 1)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.SymbolCount != 7 {
		t.Fatalf("expected count 7 after guarded update, got %d", record.SymbolCount)
	}
}

func setupMessageRepo(t *testing.T) (*messageRepo, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.Exec(`CREATE TABLE messages (
		chat_id BIGINT NOT NULL,
		message_id BIGINT NOT NULL,
		user_id BIGINT,
		symbol_count BIGINT NOT NULL DEFAULT 0,
		surfaces TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, message_id)
	)`).Error; err != nil {
		t.Fatalf("create messages: %v", err)
	}

	return &messageRepo{}, db
}

func newMessageRecord(chatID, messageID, count int64) *ledgerdomain.MessageRecord {
	userID := int64(7)
	now := time.Now().UTC()
	return &ledgerdomain.MessageRecord{
		ChatID:      chatID,
		MessageID:   messageID,
		UserID:      &userID,
		SymbolCount: count,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
