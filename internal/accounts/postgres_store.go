// File: internal/accounts/postgres_store.go
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/schemas"
)

// PgxQuerier is the slice of the pgxpool API the store uses. pgxmock
// satisfies it in tests.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps the roster in a Postgres table, for deployments where
// several operators share one fleet.
type PostgresStore struct {
	db     PgxQuerier
	logger *zap.Logger
}

// NewPostgresStore connects a pool to the given DSN and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	store := NewPostgresStoreWithQuerier(pool, logger)
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithQuerier wraps an existing querier. Used by tests and
// by callers that manage the pool themselves.
func NewPostgresStoreWithQuerier(db PgxQuerier, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Named("account_store")}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fleet_accounts (
			email      TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("ensuring fleet_accounts schema: %w", err)
	}
	return nil
}

// List returns all accounts ordered by email.
func (s *PostgresStore) List(ctx context.Context) ([]schemas.Account, error) {
	rows, err := s.db.Query(ctx, `
		SELECT email, password FROM fleet_accounts ORDER BY email;
	`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []schemas.Account
	for rows.Next() {
		var acc schemas.Account
		if err := rows.Scan(&acc.Email, &acc.Password); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}
	return out, nil
}

// Add inserts a new account, mapping a unique violation to ErrDuplicate.
func (s *PostgresStore) Add(ctx context.Context, account schemas.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO fleet_accounts (email, password) VALUES (LOWER($1), $2);
	`, account.Email, account.Password)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", account.Email, ErrDuplicate)
		}
		return fmt.Errorf("inserting account %s: %w", account.Email, err)
	}
	s.logger.Info("Account added to roster.", zap.String("email", account.Email))
	return nil
}

// Remove deletes an account by email.
func (s *PostgresStore) Remove(ctx context.Context, email string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM fleet_accounts WHERE email = LOWER($1);
	`, email)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", email, ErrNotFound)
	}
	s.logger.Info("Account removed from roster.", zap.String("email", email))
	return nil
}

// Count returns the roster size.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM fleet_accounts;`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

var _ Store = (*PostgresStore)(nil)
