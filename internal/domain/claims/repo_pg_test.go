package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ehr/interchange/internal/platform/db/dbtest"
)

func TestReconciliationRepoPG(t *testing.T) {
	pool := dbtest.Start(t, 15433)
	repo := NewReconciliationRepoPG(pool)
	ctx := context.Background()

	p := newTestParser(t)
	a, err := p.Analyze(msg(sample837))
	if err != nil {
		t.Fatal(err)
	}
	rem, err := p.Payments(msg(sample835))
	if err != nil {
		t.Fatal(err)
	}
	run := &Run{
		ClaimsSource:   "claims.837",
		PaymentsSource: "payments.835",
		Reconciliation: *Match(a.Claims, rem.Payments),
	}

	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.ID == uuid.Nil || run.CreatedAt.IsZero() {
		t.Errorf("expected id and created_at to be set, got %+v", run)
	}

	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.MatchedCount != 1 || got.UnmatchedCount != 1 {
		t.Errorf("unexpected counts %d/%d", got.MatchedCount, got.UnmatchedCount)
	}
	if len(got.Matched) != 1 || got.Matched[0].AmountPaid != "400.00" {
		t.Errorf("unexpected matched entries: %+v", got.Matched)
	}
	if d := got.Matched[0].Discrepancy; d == nil || !d.IsZero() {
		t.Errorf("expected zero discrepancy, got %v", d)
	}
	want := ClaimRecord{ClaimID: "1002", AmountBilled: "250.00", ClaimType: "11:B:1"}
	if len(got.Unmatched) != 1 || got.Unmatched[0] != want {
		t.Errorf("unexpected unmatched entries: %+v", got.Unmatched)
	}

	// Discrepancies keep their full precision and magnitude.
	wide := decimal.RequireFromString("1234567890123456.789")
	precise := &Run{
		ClaimsSource:   "wide.837",
		PaymentsSource: "wide.835",
		Reconciliation: Reconciliation{
			Matched: []ReconciliationEntry{{
				ClaimID:      "W1",
				AmountBilled: "1234567890123456.789",
				AmountPaid:   "0",
				Adjustment:   "0",
				Discrepancy:  &wide,
			}},
		},
	}
	if err := repo.Create(ctx, precise); err != nil {
		t.Fatalf("Create wide discrepancy: %v", err)
	}
	got, err = repo.GetByID(ctx, precise.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if d := got.Matched[0].Discrepancy; d == nil || !d.Equal(wide) {
		t.Errorf("expected discrepancy %s, got %v", wide, d)
	}

	items, total, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("unexpected list: total=%d items=%d", total, len(items))
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
