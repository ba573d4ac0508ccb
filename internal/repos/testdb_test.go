package repos

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/docchat-backend/internal/platform/logger"
)

// newTestDB opens an in-memory sqlite database with the schema the repos
// expect. Postgres-specific defaults (uuid_generate_v4) are replaced by
// the repos assigning ids in Go, so plain DDL is enough here.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// A second connection to :memory: would see an empty database.
	sqlDB.SetMaxOpenConns(1)

	ddl := []string{
		`CREATE TABLE app_user (
			id TEXT PRIMARY KEY,
			external_ref TEXT UNIQUE,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE document (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			original_name TEXT NOT NULL,
			mime_type TEXT,
			size_bytes INTEGER,
			status TEXT NOT NULL DEFAULT 'pending',
			status_reason TEXT,
			vector_namespace TEXT NOT NULL,
			page_count INTEGER,
			chunk_count INTEGER,
			ingested_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE document_chunk (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			text TEXT NOT NULL,
			page INTEGER,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			vector_id TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (document_id, ordinal)
		)`,
		`CREATE TABLE conversation_turn (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			answer_blocks TEXT,
			citations TEXT,
			degraded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return gdb
}

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}
