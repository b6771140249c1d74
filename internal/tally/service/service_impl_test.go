package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	aggregaterepo "github.com/hivelabs/hivetally/internal/aggregate/repository"
	"github.com/hivelabs/hivetally/internal/config"
	exclusionrepo "github.com/hivelabs/hivetally/internal/exclusion/repository"
	ledgerrepo "github.com/hivelabs/hivetally/internal/ledger/repository"
	tallydomain "github.com/hivelabs/hivetally/internal/tally/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCreateCountsAllSurfaces(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces = tallydomain.ContentSurfaces{
		Text:         "🐝🐝 good morning",
		Caption:      "🐝",
		StickerEmoji: "🐝",
	}

	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	if count := storedCount(t, db, 100, 1); count != 4 {
		t.Fatalf("expected stored count 4, got %d", count)
	}
	if total := userTotal(t, db, 100, 7); total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}
}

func TestCreateDuplicateDeliveryIsNoop(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝🐝"

	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create first: %v", err)
	}

	// Re-delivery with different content must not win or re-count.
	event.Surfaces.Text = "🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create second: %v", err)
	}

	if count := storedCount(t, db, 100, 1); count != 3 {
		t.Fatalf("expected first write to win with 3, got %d", count)
	}
	if total := userTotal(t, db, 100, 7); total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if rows := messageRows(t, db); rows != 1 {
		t.Fatalf("expected 1 message row, got %d", rows)
	}
}

func TestCreateZeroCountKeepsBaseline(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "no symbols here"

	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	if count := storedCount(t, db, 100, 1); count != 0 {
		t.Fatalf("expected stored count 0, got %d", count)
	}
	// Zero is a valid total; the row exists so later edits have a baseline.
	if total := userTotal(t, db, 100, 7); total != 0 {
		t.Fatalf("expected total 0, got %d", total)
	}
	if rows := tallyRows(t, db, 100, 7); rows != 1 {
		t.Fatalf("expected 1 tally row, got %d", rows)
	}
}

func TestCreateWithoutUserLedgerOnly(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := tallydomain.Event{
		ChatID:    100,
		MessageID: 1,
		Surfaces:  tallydomain.ContentSurfaces{Text: "🐝🐝"},
	}

	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	if count := storedCount(t, db, 100, 1); count != 2 {
		t.Fatalf("expected stored count 2, got %d", count)
	}
	var tallies int
	if err := db.Raw(`SELECT COUNT(1) FROM tallies`).Scan(&tallies).Error; err != nil {
		t.Fatalf("count tallies: %v", err)
	}
	if tallies != 0 {
		t.Fatalf("expected no tally rows, got %d", tallies)
	}
}

func TestEditAppliesDelta(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	event.Surfaces.Text = "🐝🐝🐝🐝🐝🐝🐝"
	if err := service.OnMessageEdited(ctx, event); err != nil {
		t.Fatalf("edit up: %v", err)
	}
	if total := userTotal(t, db, 100, 7); total != 7 {
		t.Fatalf("expected total 7 after edit up, got %d", total)
	}

	event.Surfaces.Text = "🐝"
	if err := service.OnMessageEdited(ctx, event); err != nil {
		t.Fatalf("edit down: %v", err)
	}
	if total := userTotal(t, db, 100, 7); total != 1 {
		t.Fatalf("expected total 1 after edit down, got %d", total)
	}
	if count := storedCount(t, db, 100, 1); count != 1 {
		t.Fatalf("expected stored count 1, got %d", count)
	}
}

func TestEditBeforeCreateActsAsCreate(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝"

	if err := service.OnMessageEdited(ctx, event); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if total := userTotal(t, db, 100, 7); total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}

	// The late creation event is now a duplicate.
	event.Surfaces.Text = "🐝🐝🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("late create: %v", err)
	}
	if total := userTotal(t, db, 100, 7); total != 2 {
		t.Fatalf("expected total unchanged at 2, got %d", total)
	}
}

func TestEditSameContentIsNoop(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.OnMessageEdited(ctx, event); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if total := userTotal(t, db, 100, 7); total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
}

func TestFrozenUserKeepsLedgerRowOnly(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	freezeUser(t, db, 7)

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	if count := storedCount(t, db, 100, 1); count != 3 {
		t.Fatalf("expected ledger count 3, got %d", count)
	}
	if rows := tallyRows(t, db, 100, 7); rows != 0 {
		t.Fatalf("expected no tally rows for frozen user, got %d", rows)
	}
}

func TestFrozenUserEditSuppressed(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	freezeUser(t, db, 7)

	event.Surfaces.Text = "🐝🐝🐝🐝🐝"
	if err := service.OnMessageEdited(ctx, event); err != nil {
		t.Fatalf("edit: %v", err)
	}

	// Ledger reflects the edit, the aggregate does not.
	if count := storedCount(t, db, 100, 1); count != 5 {
		t.Fatalf("expected ledger count 5, got %d", count)
	}
	if total := userTotal(t, db, 100, 7); total != 2 {
		t.Fatalf("expected total frozen at 2, got %d", total)
	}
}

func TestChatsAreIsolated(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	first := newEvent(100, 1, 7, "melissa")
	first.Surfaces.Text = "🐝🐝"
	second := newEvent(200, 1, 7, "melissa")
	second.Surfaces.Text = "🐝🐝🐝"

	if err := service.OnMessageCreated(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := service.OnMessageCreated(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	if total := userTotal(t, db, 100, 7); total != 2 {
		t.Fatalf("expected chat 100 total 2, got %d", total)
	}
	if total := userTotal(t, db, 200, 7); total != 3 {
		t.Fatalf("expected chat 200 total 3, got %d", total)
	}
}

func TestConcurrentDuplicateCreates(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝🐝"

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- service.OnMessageCreated(ctx, event)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	if total := userTotal(t, db, 100, 7); total != 3 {
		t.Fatalf("expected total 3 after concurrent deliveries, got %d", total)
	}
	if rows := messageRows(t, db); rows != 1 {
		t.Fatalf("expected 1 message row, got %d", rows)
	}
}

func TestConcurrentEditsConverge(t *testing.T) {
	service, db := setupTallyService(t)
	ctx := context.Background()

	event := newEvent(100, 1, 7, "melissa")
	event.Surfaces.Text = "🐝🐝🐝"
	if err := service.OnMessageCreated(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Each edit's delta is computed against a guarded baseline, so whatever
	// order they land in, the aggregate must equal the last stored count.
	contents := []string{"🐝", "🐝🐝🐝🐝🐝🐝🐝", "🐝🐝", "🐝🐝🐝🐝"}
	var wg sync.WaitGroup
	errs := make(chan error, len(contents))
	for _, text := range contents {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			edit := newEvent(100, 1, 7, "melissa")
			edit.Surfaces.Text = text
			errs <- service.OnMessageEdited(ctx, edit)
		}(text)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent edit: %v", err)
		}
	}

	if count, total := storedCount(t, db, 100, 1), userTotal(t, db, 100, 7); total != count {
		t.Fatalf("aggregate %d diverged from ledger count %d", total, count)
	}
}

func TestInvalidEventRejected(t *testing.T) {
	service, _ := setupTallyService(t)
	ctx := context.Background()

	if err := service.OnMessageCreated(ctx, tallydomain.Event{MessageID: 1}); err != tallydomain.ErrInvalidChat {
		t.Fatalf("expected ErrInvalidChat, got %v", err)
	}
	if err := service.OnMessageEdited(ctx, tallydomain.Event{ChatID: 100}); err != tallydomain.ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func setupTallyService(t *testing.T) (tallydomain.Service, *gorm.DB) {
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
	prepareTallySchema(t, db)

	service := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		Policy:        config.NewTallyPolicyHolderWith(config.DefaultTallyPolicy()),
		LedgerRepo:    ledgerrepo.Provide(),
		AggRepo:       aggregaterepo.Provide(),
		ExclusionRepo: exclusionrepo.Provide(),
	})

	return service, db
}

func prepareTallySchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE messages (
		chat_id BIGINT NOT NULL,
		message_id BIGINT NOT NULL,
		user_id BIGINT,
		symbol_count BIGINT NOT NULL DEFAULT 0,
		surfaces JSON,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, message_id)
	)`).Error; err != nil {
		t.Fatalf("create messages: %v", err)
	}
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
	if err := db.Exec(`CREATE TABLE frozen_users (
		user_id BIGINT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		frozen_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create frozen_users: %v", err)
	}
}

func newEvent(chatID, messageID, userID int64, senderName string) tallydomain.Event {
	return tallydomain.Event{
		ChatID:     chatID,
		MessageID:  messageID,
		UserID:     &userID,
		SenderName: senderName,
	}
}

func freezeUser(t *testing.T, db *gorm.DB, userID int64) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO frozen_users (user_id, display_name, frozen_at) VALUES (?, '', ?)`,
		userID,
		time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("freeze user: %v", err)
	}
}

func storedCount(t *testing.T, db *gorm.DB, chatID, messageID int64) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(
		`SELECT symbol_count FROM messages WHERE chat_id = ? AND message_id = ?`,
		chatID,
		messageID,
	).Scan(&count).Error; err != nil {
		t.Fatalf("stored count: %v", err)
	}
	return count
}

func userTotal(t *testing.T, db *gorm.DB, chatID, userID int64) int64 {
	t.Helper()
	var total int64
	if err := db.Raw(
		`SELECT COALESCE(SUM(total), 0) FROM tallies WHERE chat_id = ? AND user_id = ?`,
		chatID,
		userID,
	).Scan(&total).Error; err != nil {
		t.Fatalf("user total: %v", err)
	}
	return total
}

func tallyRows(t *testing.T, db *gorm.DB, chatID, userID int64) int {
	t.Helper()
	var rows int
	if err := db.Raw(
		`SELECT COUNT(1) FROM tallies WHERE chat_id = ? AND user_id = ?`,
		chatID,
		userID,
	).Scan(&rows).Error; err != nil {
		t.Fatalf("tally rows: %v", err)
	}
	return rows
}

func messageRows(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var rows int
	if err := db.Raw(`SELECT COUNT(1) FROM messages`).Scan(&rows).Error; err != nil {
		t.Fatalf("message rows: %v", err)
	}
	return rows
}
