package logger

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestStoreFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"INSERT INTO messages (chat_id) VALUES (1)", "ledger"},
		{"UPDATE tallies SET total = total + 1", "aggregate"},
		{"SELECT 1 FROM frozen_users WHERE user_id = 7", "exclusion"},
		{"UPDATE freeze_proposals SET status = 'applied'", "exclusion"},
		{"SELECT 1", "other"},
	}
	for _, tc := range cases {
		if got := storeFromSQL(tc.sql); got != tc.want {
			t.Fatalf("storeFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"select * from tallies", "SELECT"},
		{"  INSERT INTO messages VALUES (1)", "INSERT"},
		{"WITH ranked AS (SELECT 1) SELECT * FROM ranked", "SELECT"},
		{"PRAGMA busy_timeout = 5000", "UNKNOWN"},
		{"", "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}

func TestDefaultGormLoggerConfig(t *testing.T) {
	cfg := DefaultGormLoggerConfig()
	if cfg.Level != gormlogger.Warn {
		t.Fatalf("expected warn level, got %v", cfg.Level)
	}
	if !cfg.IgnoreRecordNotFound {
		t.Fatalf("expected record-not-found squelched; ledger misses are routine")
	}
}
