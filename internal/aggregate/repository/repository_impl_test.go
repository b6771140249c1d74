package repository

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestApplyDeltaAccumulates(t *testing.T) {
	repo, db := setupTallyRepo(t)
	ctx := context.Background()

	if err := repo.ApplyDelta(ctx, db, 100, 7, 3, "melissa"); err != nil {
		t.Fatalf("first delta: %v", err)
	}
	if err := repo.ApplyDelta(ctx, db, 100, 7, 4, "melissa"); err != nil {
		t.Fatalf("second delta: %v", err)
	}
	if err := repo.ApplyDelta(ctx, db, 100, 7, -2, "melissa"); err != nil {
		t.Fatalf("negative delta: %v", err)
	}

	total, err := repo.FindTotal(ctx, db, 100, 7)
	if err != nil {
		t.Fatalf("find total: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected accumulated total 5, got %d", total)
	}

	var rows int64
	if err := db.Raw(`SELECT COUNT(*) FROM tallies`).Scan(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single upserted row, got %d", rows)
	}
}

func TestApplyDeltaKeepsNameOnBlankUpdate(t *testing.T) {
	repo, db := setupTallyRepo(t)
	ctx := context.Background()

	if err := repo.ApplyDelta(ctx, db, 100, 7, 3, "melissa"); err != nil {
		t.Fatalf("named delta: %v", err)
	}
	// Retroactive corrections carry no sender name and must not erase the
	// cached one.
	if err := repo.ApplyDelta(ctx, db, 100, 7, -3, ""); err != nil {
		t.Fatalf("anonymous delta: %v", err)
	}

	var name string
	if err := db.Raw(`SELECT display_name FROM tallies WHERE chat_id = 100 AND user_id = 7`).Scan(&name).Error; err != nil {
		t.Fatalf("read name: %v", err)
	}
	if name != "melissa" {
		t.Fatalf("expected cached name preserved, got %q", name)
	}
}

func TestTopByChatOrdering(t *testing.T) {
	repo, db := setupTallyRepo(t)
	ctx := context.Background()

	if err := repo.ApplyDelta(ctx, db, 100, 3, 5, "cy"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.ApplyDelta(ctx, db, 100, 1, 9, "ana"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.ApplyDelta(ctx, db, 100, 2, 5, "bo"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows, err := repo.TopByChat(ctx, db, 100, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].UserID != 1 || rows[1].UserID != 2 || rows[2].UserID != 3 {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func setupTallyRepo(t *testing.T) (*tallyRepo, *gorm.DB) {
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

	if err := db.Exec(`CREATE TABLE tallies (
		chat_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		total BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	)`).Error; err != nil {
		t.Fatalf("create tallies: %v", err)
	}

	return &tallyRepo{}, db
}
