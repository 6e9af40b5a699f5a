package claims

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ehr/interchange/internal/platform/segment"
)

// Record kinds produced by the claims schema.
const (
	KindClaim       = "claim"
	KindPayment     = "payment"
	KindPatient     = "patient"
	KindProvider    = "provider"
	KindServiceDate = "service_date"
	KindDiagnosis   = "diagnosis"
	KindProcedure   = "procedure"
)

// Amount is a monetary field kept exactly as it appeared on the wire so
// reports reproduce it byte for byte.
type Amount string

// Decimal parses the amount. Empty or non-numeric text is an error.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(a))
}

func (a Amount) String() string { return string(a) }

// ClaimRecord is built from a CLM segment.
type ClaimRecord struct {
	ClaimID      string `json:"claim_id"`
	AmountBilled Amount `json:"amount_billed"`
	ClaimType    string `json:"claim_type"`
}

func (ClaimRecord) Kind() string { return KindClaim }

func (r ClaimRecord) Annotation() string {
	return fmt.Sprintf("--> Claim ID: %s, Amount Billed: %s, Type: %s", r.ClaimID, r.AmountBilled, r.ClaimType)
}

// PaymentRecord is built from a CLP segment of a remittance.
type PaymentRecord struct {
	ClaimID      string `json:"claim_id"`
	AmountBilled Amount `json:"amount_billed"`
	AmountPaid   Amount `json:"amount_paid"`
	Adjustment   Amount `json:"adjustment"`
}

func (PaymentRecord) Kind() string { return KindPayment }

type PatientRecord struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
}

func (PatientRecord) Kind() string { return KindPatient }

func (r PatientRecord) Annotation() string {
	return fmt.Sprintf("--> Patient Name: %s %s", r.LastName, r.FirstName)
}

type ProviderRecord struct {
	Name string `json:"name"`
}

func (ProviderRecord) Kind() string { return KindProvider }

func (r ProviderRecord) Annotation() string { return "--> Provider: " + r.Name }

type ServiceDateRecord struct {
	Date string `json:"date"`
}

func (ServiceDateRecord) Kind() string { return KindServiceDate }

func (r ServiceDateRecord) Annotation() string { return "--> Service Date: " + r.Date }

type DiagnosisRecord struct {
	Code string `json:"code"`
}

func (DiagnosisRecord) Kind() string { return KindDiagnosis }

func (r DiagnosisRecord) Annotation() string { return "--> Diagnosis Code: " + r.Code }

type ProcedureRecord struct {
	Code          string `json:"code"`
	AmountCharged Amount `json:"amount_charged"`
}

func (ProcedureRecord) Kind() string { return KindProcedure }

func (r ProcedureRecord) Annotation() string {
	return fmt.Sprintf("--> Procedure Code: %s, Amount Charged: %s", r.Code, r.AmountCharged)
}

// annotated records contribute a line to the segment dump.
type annotated interface {
	Annotation() string
}

// ReconciliationEntry pairs a claim with the payment carrying the same id.
// AmountBilled always comes from the claims side.
type ReconciliationEntry struct {
	ClaimID      string           `json:"claim_id"`
	AmountBilled Amount           `json:"amount_billed"`
	AmountPaid   Amount           `json:"amount_paid"`
	Adjustment   Amount           `json:"adjustment"`
	Discrepancy  *decimal.Decimal `json:"discrepancy,omitempty"` // billed - paid - adjustment
}

// Reconciliation is the result of matching one claims stream against one
// payments stream.
type Reconciliation struct {
	Matched   []ReconciliationEntry `json:"matched"`
	Unmatched []ClaimRecord         `json:"unmatched"`
}

// Run is a stored reconciliation.
type Run struct {
	ID             uuid.UUID `json:"id"`
	ClaimsSource   string    `json:"claims_source"`
	PaymentsSource string    `json:"payments_source"`
	Reconciliation
	MatchedCount   int                  `json:"matched_count"`
	UnmatchedCount int                  `json:"unmatched_count"`
	Diagnostics    []segment.Diagnostic `json:"diagnostics"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Analysis is the outcome of parsing one claims message.
type Analysis struct {
	Source      string
	Extractions []segment.Extraction
	Claims      *Ledger[ClaimRecord]
	Diagnostics []segment.Diagnostic
}

// Remittance is the outcome of parsing one payments message.
type Remittance struct {
	Source      string
	Payments    *Ledger[PaymentRecord]
	Diagnostics []segment.Diagnostic
}
