// Package postgres implements the import storage port on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/custimport/internal/db"
	"github.com/rpattn/custimport/internal/repository"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
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

// Store is the pgx backed storage port.
type Store struct {
	repositories
	conn *db.Connection
}

// NewStore wires a store on an open connection.
func NewStore(conn *db.Connection) *Store {
	return &Store{repositories: repositories{q: conn.Pool}, conn: conn}
}

// InTx runs fn in a transaction.
func (s *Store) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&txStore{repositories: repositories{q: tx}, tx: tx})
	})
}

// Close releases the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

type txStore struct {
	repositories
	tx pgx.Tx
}

// InSavepoint uses a pgx nested transaction, which pgx issues as a SAVEPOINT.
func (t *txStore) InSavepoint(ctx context.Context, fn func(repository.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(&txStore{repositories: repositories{q: sp}, tx: sp}); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("savepoint error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txStore)(nil)
)
