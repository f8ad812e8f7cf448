package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"venuebook/internal/config"
	"venuebook/internal/domain"
	"venuebook/internal/logging"
	"venuebook/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose держит настройки в глобальном состоянии
var migrateMu sync.Mutex

var (
	ErrConcurrentModification = models.ErrConcurrentModification
	ErrSlotTaken              = fmt.Errorf("%w: slot already has an active booking", models.ErrConflict)
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// store implements domain.Store over either the pool or a transaction.
type store struct {
	q queryer
}

type DB struct {
	*sql.DB
	store
	path   string
	logger *zerolog.Logger
}

var _ domain.Repository = (*DB)(nil)

func NewDB(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	inMemory := cfg.Path == ":memory:"
	if !inMemory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	// BEGIN IMMEDIATE сериализует пишущие транзакции
	dsn := fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=%d", cfg.Path, busy)
	if !inMemory {
		dsn += "&_journal_mode=WAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch {
	case inMemory:
		// каждая новая in-memory коннекция видит пустую базу
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(context.Background(), sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", cfg.Path).Msg("Database initialized")

	return &DB{
		DB:     sqlDB,
		store:  store{q: sqlDB},
		path:   cfg.Path,
		logger: logger,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *zerolog.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logging.Goose{Logger: logging.Component(logger, "migrations")})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// WithTx runs fn in one transaction. Any error or cancelled ctx rolls everything back.
func (db *DB) WithTx(ctx context.Context, fn func(tx domain.Store) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Path() string {
	return db.path
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", models.ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// statusArgs builds "?, ?" placeholders for an IN clause.
func statusArgs(statuses []string) (string, []interface{}) {
	if len(statuses) == 0 {
		statuses = models.ActiveStatuses
	}
	placeholders := make([]byte, 0, len(statuses)*3)
	args := make([]interface{}, 0, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		placeholders = append(placeholders, '?')
		args = append(args, s)
	}
	return string(placeholders), args
}
