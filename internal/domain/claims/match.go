package claims

import "github.com/shopspring/decimal"

// Match pairs every claim with the payment for the same claim id. Claims
// without a payment are reported as unmatched; payments without a claim
// are ignored. Entries follow the claims ledger order.
func Match(claims *Ledger[ClaimRecord], payments *Ledger[PaymentRecord]) *Reconciliation {
	r := &Reconciliation{
		Matched:   []ReconciliationEntry{},
		Unmatched: []ClaimRecord{},
	}
	for id, c := range claims.All() {
		p, ok := payments.Get(id)
		if !ok {
			r.Unmatched = append(r.Unmatched, c)
			continue
		}
		r.Matched = append(r.Matched, ReconciliationEntry{
			ClaimID:      id,
			AmountBilled: c.AmountBilled,
			AmountPaid:   p.AmountPaid,
			Adjustment:   p.Adjustment,
			Discrepancy:  discrepancy(c.AmountBilled, p.AmountPaid, p.Adjustment),
		})
	}
	return r
}

// discrepancy is billed - paid - adjustment, or nil when any amount does not
// parse.
func discrepancy(billed, paid, adjustment Amount) *decimal.Decimal {
	b, err := billed.Decimal()
	if err != nil {
		return nil
	}
	p, err := paid.Decimal()
	if err != nil {
		return nil
	}
	a, err := adjustment.Decimal()
	if err != nil {
		return nil
	}
	d := b.Sub(p).Sub(a)
	return &d
}
