package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ehr/interchange/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type reconciliationRepoPG struct{ pool *pgxpool.Pool }

func NewReconciliationRepoPG(pool *pgxpool.Pool) ReconciliationRepository {
	return &reconciliationRepoPG{pool: pool}
}

func (r *reconciliationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const runCols = `id, claims_source, payments_source, matched_count, unmatched_count, diagnostics, created_at`

func (r *reconciliationRepoPG) scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var diags []byte
	err := row.Scan(&run.ID, &run.ClaimsSource, &run.PaymentsSource,
		&run.MatchedCount, &run.UnmatchedCount, &diags, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(diags, &run.Diagnostics); err != nil {
		return nil, fmt.Errorf("decoding diagnostics: %w", err)
	}
	return &run, nil
}

func (r *reconciliationRepoPG) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.MatchedCount = len(run.Matched)
	run.UnmatchedCount = len(run.Unmatched)
	diags, err := json.Marshal(nonNil(run.Diagnostics))
	if err != nil {
		return err
	}

	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		err := q.QueryRow(ctx, `
			INSERT INTO reconciliation_runs (id, claims_source, payments_source, matched_count, unmatched_count, diagnostics)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			run.ID, run.ClaimsSource, run.PaymentsSource, run.MatchedCount, run.UnmatchedCount, diags,
		).Scan(&run.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		pos := 0
		for _, m := range run.Matched {
			var disc *string
			if m.Discrepancy != nil {
				s := m.Discrepancy.String()
				disc = &s
			}
			if _, err := q.Exec(ctx, `
				INSERT INTO reconciliation_entries (run_id, position, claim_id, matched, amount_billed, amount_paid, adjustment, discrepancy)
				VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7::text::numeric)`,
				run.ID, pos, m.ClaimID, string(m.AmountBilled), string(m.AmountPaid), string(m.Adjustment), disc); err != nil {
				return fmt.Errorf("insert entry %s: %w", m.ClaimID, err)
			}
			pos++
		}
		for _, c := range run.Unmatched {
			if _, err := q.Exec(ctx, `
				INSERT INTO reconciliation_entries (run_id, position, claim_id, matched, amount_billed, claim_type)
				VALUES ($1, $2, $3, FALSE, $4, $5)`,
				run.ID, pos, c.ClaimID, string(c.AmountBilled), c.ClaimType); err != nil {
				return fmt.Errorf("insert entry %s: %w", c.ClaimID, err)
			}
			pos++
		}
		return nil
	})
}

func (r *reconciliationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := r.scanRun(r.conn(ctx).QueryRow(ctx, `SELECT `+runCols+` FROM reconciliation_runs WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT claim_id, matched, amount_billed, claim_type, COALESCE(amount_paid, ''), COALESCE(adjustment, ''), discrepancy::text
		FROM reconciliation_entries WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Matched = []ReconciliationEntry{}
	run.Unmatched = []ClaimRecord{}
	for rows.Next() {
		var (
			claimID, billed, claimType, paid, adj string
			matched                               bool
			disc                                  *string
		)
		if err := rows.Scan(&claimID, &matched, &billed, &claimType, &paid, &adj, &disc); err != nil {
			return nil, err
		}
		if !matched {
			run.Unmatched = append(run.Unmatched, ClaimRecord{ClaimID: claimID, AmountBilled: Amount(billed), ClaimType: claimType})
			continue
		}
		e := ReconciliationEntry{ClaimID: claimID, AmountBilled: Amount(billed), AmountPaid: Amount(paid), Adjustment: Amount(adj)}
		if disc != nil {
			d, err := decimal.NewFromString(*disc)
			if err != nil {
				return nil, fmt.Errorf("decoding discrepancy: %w", err)
			}
			e.Discrepancy = &d
		}
		run.Matched = append(run.Matched, e)
	}
	return run, rows.Err()
}

func (r *reconciliationRepoPG) List(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+runCols+` FROM reconciliation_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, run)
	}
	return items, total, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
