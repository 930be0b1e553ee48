// internal/rating/history/postgres.go
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore persists entries in the csr_history table.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

const entryColumns = `id, company_id, previous_score, new_score, delta, category, reason, created_at`

// WithCompanyLock runs fn in one transaction holding a transaction-scoped
// advisory lock on the company id. Concurrent recorders for the same company
// queue on the lock, so each sees the entries the previous one committed.
func (s *PostgresStore) WithCompanyLock(ctx context.Context, companyID string, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin csr_history tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, companyID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock csr_history for %s: %w", companyID, err)
	}

	if err := fn(&PostgresStore{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit csr_history tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO csr_history (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		e.ID, e.CompanyID, e.PreviousScore, e.NewScore, e.Delta, e.Category, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert csr_history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, companyID string, categories ...string) (*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM csr_history
		WHERE company_id = $1 AND category = ANY($2)
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	row := s.q.QueryRowContext(ctx, query, companyID, pq.Array(categories))

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest csr_history: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context, companyID string, limit int) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM csr_history
		WHERE company_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`
	rows, err := s.q.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query csr_history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan csr_history: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate csr_history: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry leaves CreatedAt zero when the stored timestamp is NULL.
func scanEntry(row scanner) (*Entry, error) {
	var (
		e         Entry
		createdAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.CompanyID, &e.PreviousScore, &e.NewScore, &e.Delta,
		&e.Category, &e.Reason, &createdAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		e.CreatedAt = createdAt.Time.UTC()
	}
	return &e, nil
}
