package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	aggregaterepo "github.com/hivelabs/hivetally/internal/aggregate/repository"
	"github.com/hivelabs/hivetally/internal/config"
	exclusionrepo "github.com/hivelabs/hivetally/internal/exclusion/repository"
	exclusionservice "github.com/hivelabs/hivetally/internal/exclusion/service"
	ledgerrepo "github.com/hivelabs/hivetally/internal/ledger/repository"
	queryservice "github.com/hivelabs/hivetally/internal/query/service"
	tallyservice "github.com/hivelabs/hivetally/internal/tally/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEventIngestProcessedReturnsOK(t *testing.T) {
	srv := setupEventServer(t)

	w := postJSON(srv, "/api/events/message-created",
		`{"chat_id": 100, "message_id": 1, "user_id": 7, "sender_name": "melissa", "surfaces": {"text": "🐝🐝"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("expected ok status, got %s", w.Body.String())
	}

	w = getPath(srv, "/api/chats/100/total")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from total, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":2`) {
		t.Fatalf("expected total 2, got %s", w.Body.String())
	}
}

func TestEventIngestDuplicateDeliveryStillOK(t *testing.T) {
	srv := setupEventServer(t)
	body := `{"chat_id": 100, "message_id": 1, "user_id": 7, "surfaces": {"text": "🐝🐝🐝"}}`

	for i := 0; i < 2; i++ {
		if w := postJSON(srv, "/api/events/message-created", body); w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := getPath(srv, "/api/chats/100/total")
	if !strings.Contains(w.Body.String(), `"total":3`) {
		t.Fatalf("expected total 3 after duplicate delivery, got %s", w.Body.String())
	}
}

func TestEventIngestRejectsMalformedBody(t *testing.T) {
	srv := setupEventServer(t)

	if w := postJSON(srv, "/api/events/message-created", `{"chat_id": "nope"`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	if w := postJSON(srv, "/api/events/message-edited", `{"message_id": 1, "surfaces": {"text": "🐝"}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing chat id, got %d", w.Code)
	}
}

func setupEventServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	prepareEventSchema(t, db)

	log := zap.NewNop()
	policy := config.NewTallyPolicyHolderWith(config.DefaultTallyPolicy())
	cfg := config.Config{AdminUserID: 42, AdminToken: "hunter2"}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	aggRepo := aggregaterepo.Provide()
	tallySvc := tallyservice.New(tallyservice.Params{
		DB:            db,
		Log:           log,
		Policy:        policy,
		LedgerRepo:    ledgerrepo.Provide(),
		AggRepo:       aggRepo,
		ExclusionRepo: exclusionrepo.Provide(),
	})
	querySvc := queryservice.New(queryservice.Params{
		DB:      db,
		Log:     log,
		Policy:  policy,
		AggRepo: aggRepo,
	})
	exclusionSvc := exclusionservice.New(exclusionservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Config:  cfg,
		Policy:  policy,
		Repo:    exclusionrepo.Provide(),
		AggRepo: aggRepo,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	return NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		DB:           db,
		TallySvc:     tallySvc,
		QuerySvc:     querySvc,
		ExclusionSvc: exclusionSvc,
	})
}

func prepareEventSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE messages (
			chat_id BIGINT NOT NULL,
			message_id BIGINT NOT NULL,
			user_id BIGINT,
			symbol_count BIGINT NOT NULL DEFAULT 0,
			surfaces JSON,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (chat_id, message_id)
		)`,
		`CREATE TABLE tallies (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			total BIGINT NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (chat_id, user_id)
		)`,
		`CREATE TABLE frozen_users (
			user_id BIGINT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			frozen_at DATETIME NOT NULL
		)`,
		`CREATE TABLE freeze_proposals (
			id BIGINT PRIMARY KEY,
			action TEXT NOT NULL,
			target_user_id BIGINT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			proposed_by BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func postJSON(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func getPath(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}
