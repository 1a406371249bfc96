package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/biscalabs/biscagate/internal/model"
	"github.com/jmoiron/sqlx"
)

// PostgresEntryRepo persists the treasury's settlement/audit trail.
type PostgresEntryRepo struct {
	db *sqlx.DB
}

func NewPostgresEntryRepo(db *sqlx.DB) *PostgresEntryRepo {
	repo := &PostgresEntryRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresEntryRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS treasury_entries (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			proposal_id BIGINT,
			request_id TEXT,
			account TEXT NOT NULL,
			amount TEXT NOT NULL,
			context JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_treasury_entries_kind ON treasury_entries (kind);
		CREATE INDEX IF NOT EXISTS idx_treasury_entries_created_at ON treasury_entries (created_at);
	`)
	return err
}

func (r *PostgresEntryRepo) Insert(ctx context.Context, entry *model.TreasuryEntry) error {
	if entry == nil {
		return nil
	}
	contextJSON, _ := json.Marshal(entry.Context)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO treasury_entries (
			id, kind, proposal_id, request_id, account, amount, context, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, entry.ID, entry.Kind, entry.ProposalID, entry.RequestID,
		entry.Account, entry.Amount, contextJSON, entry.CreatedAt)
	return err
}

func (r *PostgresEntryRepo) List(ctx context.Context, kind string, limit int, from, to *time.Time) ([]*model.TreasuryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, kind, proposal_id, request_id, account, amount, context, created_at FROM treasury_entries`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	if kind != "" {
		clauses = append(clauses, fmt.Sprintf("kind = $%d", idx))
		args = append(args, kind)
		idx++
	}
	if from != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *from)
		idx++
	}
	if to != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *to)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.TreasuryEntry, 0, limit)
	for rows.Next() {
		var entry model.TreasuryEntry
		var contextJSON []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.ProposalID,
			&entry.RequestID,
			&entry.Account,
			&entry.Amount,
			&contextJSON,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(contextJSON) > 0 {
			_ = json.Unmarshal(contextJSON, &entry.Context)
		}
		records = append(records, &entry)
	}
	return records, rows.Err()
}

// Cleanup removes entries older than the retention window.
func (r *PostgresEntryRepo) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM treasury_entries WHERE created_at < $1`, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
