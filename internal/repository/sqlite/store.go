// Package sqlite implements the import storage port on SQLite (modernc.org/sqlite).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/rpattn/custimport/internal/db"
	"github.com/rpattn/custimport/internal/repository"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repositories struct {
	q querier
}

func (r repositories) Customers() repository.CustomerRepository { return &customerRepository{q: r.q} }
func (r repositories) Profiles() repository.MappingProfileRepository {
	return &profileRepository{q: r.q}
}
func (r repositories) Signatures() repository.SignatureHistoryRepository {
	return &signatureRepository{q: r.q}
}
func (r repositories) Batches() repository.BatchRepository { return &batchRepository{q: r.q} }
func (r repositories) Audit() repository.AuditRepository   { return &auditRepository{q: r.q} }
func (r repositories) ImportLogs() repository.ImportLogRepository {
	return &importLogRepository{q: r.q}
}
func (r repositories) Aliases() repository.VocabularyAliasRepository { return &aliasRepository{q: r.q} }

// Store is the SQLite backed storage port.
type Store struct {
	repositories
	db *sql.DB
}

// Open opens (and migrates) the database at path. ":memory:" gives a private in-memory
// database held on a single connection.
func Open(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if !strings.HasPrefix(path, "file:") {
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps an in-memory database alive.
	conn.SetMaxOpenConns(1)

	if err := db.RunSQLiteMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{repositories: repositories{q: conn}, db: conn}, nil
}

// InTx runs fn in a transaction.
func (s *Store) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{repositories: repositories{q: tx}, tx: tx, seq: new(atomic.Int64)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type txStore struct {
	repositories
	tx  *sql.Tx
	seq *atomic.Int64
}

func (t *txStore) InSavepoint(ctx context.Context, fn func(repository.Tx) error) error {
	name := fmt.Sprintf("sp_%d", t.seq.Add(1))
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(t); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("savepoint error: %v, rollback error: %w", err, rbErr)
		}
		if _, relErr := t.tx.ExecContext(ctx, "RELEASE "+name); relErr != nil {
			return fmt.Errorf("savepoint error: %v, release error: %w", err, relErr)
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txStore)(nil)
)
