package backend

import (
	"context"
	"time"

	"saldo/internal/services"
	"saldo/internal/sheets"
	"saldo/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult carries the store and the optional event publisher built for
// one process. Events is a nil interface when publishing is disabled.
type BackendResult struct {
	Store   storage.Store
	Events  services.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateMirror(ctx context.Context, config Config) (sheets.Mirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath      string
	SQLiteBusyTimeout time.Duration

	// Postgres specific
	DatabaseURL         string
	PostgresLockTimeout time.Duration

	// Optional for every store
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets mirror; without a spreadsheet id the mirror is kept in memory
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleGoalsSheetName     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
