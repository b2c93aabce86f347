package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rewind/logging"
	"rewind/ports"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger wraps the rewind logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

// LogMode sets the log level
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

// Info logs info messages
func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

// Warn logs warn messages
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

// Error logs error messages
func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs SQL queries - only in debug mode
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

// newGormLogger creates a GORM logger that respects rewind's debug settings
func newGormLogger() logger.Interface {
	if os.Getenv("REWIND_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// Store provides thread-safe ACID access to sessions, checkpoints, and the
// tool invocation ledger
type Store struct {
	db *gorm.DB
}

// Store implements the session hierarchy, ledger, and checkpoint store
// contracts
var (
	_ ports.SessionHierarchy = (*Store)(nil)
	_ ports.Ledger           = (*Store)(nil)
	_ ports.CheckpointStore  = (*Store)(nil)
)

// NewStore creates a new storage instance with WAL mode enabled
func NewStore(dbPath string) (*Store, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false, // Disable to avoid transaction conflicts
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent access; busy timeout covers writer contention
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := migrate(db); err != nil {
		return nil, err
	}

	// SQLite with WAL mode can handle multiple readers + 1 writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &Store{db: db}, nil
}

// migrate creates the schema. Tables with foreign keys are created manually
// because AutoMigrate has issues with foreign keys in SQLite.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("failed to migrate User schema: %w", err)
	}

	migrator := db.Migrator()

	if !migrator.HasTable(&ExternalSession{}) {
		if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS external_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				is_active INTEGER NOT NULL DEFAULT 1,
				current_session_id INTEGER,
				branch_count INTEGER NOT NULL DEFAULT 0,
				total_checkpoints INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME,
				updated_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)
		`).Error; err != nil {
			return fmt.Errorf("failed to create external_sessions table: %w", err)
		}
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_user ON external_sessions(user_id)`)
	}

	if !migrator.HasTable(&InternalSession{}) {
		if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS internal_sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				external_session_id INTEGER NOT NULL,
				runtime_id TEXT NOT NULL UNIQUE,
				parent_session_id INTEGER,
				branch_checkpoint_id INTEGER,
				is_current INTEGER NOT NULL DEFAULT 1,
				checkpoint_count INTEGER NOT NULL DEFAULT 0,
				tool_count INTEGER NOT NULL DEFAULT 0,
				state_snapshot BLOB,
				created_at DATETIME,
				FOREIGN KEY (external_session_id) REFERENCES external_sessions(id) ON DELETE CASCADE
			)
		`).Error; err != nil {
			return fmt.Errorf("failed to create internal_sessions table: %w", err)
		}
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_internal_external ON internal_sessions(external_session_id)`)
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_internal_parent ON internal_sessions(parent_session_id)`)
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_internal_branch_cp ON internal_sessions(branch_checkpoint_id)`)
	}

	if !migrator.HasTable(&Checkpoint{}) {
		if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS checkpoints (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				internal_session_id INTEGER NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				state_snapshot BLOB,
				tool_track_position INTEGER NOT NULL DEFAULT 0,
				is_auto INTEGER NOT NULL DEFAULT 0,
				metadata TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME,
				FOREIGN KEY (internal_session_id) REFERENCES internal_sessions(id) ON DELETE CASCADE
			)
		`).Error; err != nil {
			return fmt.Errorf("failed to create checkpoints table: %w", err)
		}
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(internal_session_id)`)
	}

	if !migrator.HasTable(&ToolInvocation{}) {
		if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS tool_invocations (
				session_id INTEGER NOT NULL,
				ordinal INTEGER NOT NULL,
				tool_name TEXT NOT NULL,
				arguments TEXT NOT NULL DEFAULT '{}',
				result TEXT NOT NULL DEFAULT 'null',
				reversed INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME,
				PRIMARY KEY (session_id, ordinal),
				FOREIGN KEY (session_id) REFERENCES internal_sessions(id) ON DELETE CASCADE
			)
		`).Error; err != nil {
			return fmt.Errorf("failed to create tool_invocations table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry retries operations on SQLITE_BUSY with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
