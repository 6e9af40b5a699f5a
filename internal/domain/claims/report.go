package claims

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// WriteReport writes the plain-text reconciliation summary.
func WriteReport(w io.Writer, r *Reconciliation) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Reconciliation Summary:")
	for _, m := range r.Matched {
		fmt.Fprintf(bw, "Claim ID: %s, Amount Billed (837): $%s, Amount Paid (835): $%s, Adjustment (835): $%s\n",
			m.ClaimID, m.AmountBilled, m.AmountPaid, m.Adjustment)
	}
	fmt.Fprintln(bw, "\nUnmatched Claims (837):")
	for _, c := range r.Unmatched {
		fmt.Fprintf(bw, "Claim ID: %s, Amount Billed: $%s\n", c.ClaimID, c.AmountBilled)
	}
	return bw.Flush()
}

// WriteJSONReport writes the run, including counts and discrepancies, as
// indented JSON.
func WriteJSONReport(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(run)
}

// WriteDump writes every segment re-terminated with "~", each recognised
// segment followed by its annotation line.
func WriteDump(w io.Writer, a *Analysis) error {
	bw := bufio.NewWriter(w)
	for _, e := range a.Extractions {
		fmt.Fprintf(bw, "%s~\n", e.Segment.Raw)
		if ann, ok := e.Record.(annotated); ok {
			fmt.Fprintln(bw, ann.Annotation())
		}
	}
	return bw.Flush()
}

// WriteClaimSummary writes the console summary printed after analysis.
func WriteClaimSummary(w io.Writer, claims *Ledger[ClaimRecord]) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Summary of Claims:")
	for _, c := range claims.All() {
		fmt.Fprintf(bw, "  Claim ID: %s, Amount: $%s, Type: %s\n", c.ClaimID, c.AmountBilled, c.ClaimType)
	}
	return bw.Flush()
}
