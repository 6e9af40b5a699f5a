package claims

import (
	_ "embed"
	"fmt"

	"github.com/ehr/interchange/internal/platform/segment"
)

//go:embed schema.yaml
var schemaYAML []byte

var builders = map[string]segment.Builder{
	KindClaim: func(v segment.Values) segment.Record {
		return ClaimRecord{ClaimID: v["id"], AmountBilled: Amount(v["billed"]), ClaimType: v["type"]}
	},
	KindPayment: func(v segment.Values) segment.Record {
		return PaymentRecord{
			ClaimID:      v["id"],
			AmountBilled: Amount(v["billed"]),
			AmountPaid:   Amount(v["paid"]),
			Adjustment:   Amount(v["adjustment"]),
		}
	},
	KindPatient: func(v segment.Values) segment.Record {
		return PatientRecord{LastName: v["last"], FirstName: v["first"]}
	},
	KindProvider: func(v segment.Values) segment.Record {
		return ProviderRecord{Name: v["name"]}
	},
	KindServiceDate: func(v segment.Values) segment.Record {
		return ServiceDateRecord{Date: v["date"]}
	},
	KindDiagnosis: func(v segment.Values) segment.Record {
		return DiagnosisRecord{Code: v["code"]}
	},
	KindProcedure: func(v segment.Values) segment.Record {
		return ProcedureRecord{Code: v["code"], AmountCharged: Amount(v["amount"])}
	},
}

// ClaimsValidator checks that an 837-style stream carries claims. A CLM too
// short for its fields is left to extraction, which records it as a
// MalformedSegment diagnostic and keeps the other claims.
func ClaimsValidator() segment.Validator {
	return segment.Validator{Required: []string{"CLM"}}
}

// PaymentsValidator checks that an 835-style stream carries payments.
func PaymentsValidator() segment.Validator {
	return segment.Validator{Required: []string{"CLP"}}
}

// Parser validates and extracts claims and payments messages.
type Parser struct {
	extractor *segment.Extractor
	claims    segment.Validator
	payments  segment.Validator
}

func NewParser() (*Parser, error) {
	s, err := segment.LoadSchema(schemaYAML)
	if err != nil {
		return nil, fmt.Errorf("claims schema: %w", err)
	}
	x, err := segment.NewExtractor(s, builders)
	if err != nil {
		return nil, fmt.Errorf("claims schema: %w", err)
	}
	return &Parser{extractor: x, claims: ClaimsValidator(), payments: PaymentsValidator()}, nil
}

// Analyze validates a claims message and extracts every recognised segment.
// A failed validation returns *segment.ValidationFailedError and nothing else.
func (p *Parser) Analyze(msg segment.Message) (*Analysis, error) {
	segs := p.extractor.Dialect().Parse(msg.Text)
	if err := p.claims.Check(msg.Source, segs); err != nil {
		return nil, err
	}
	ext, diags := p.extractor.ExtractAll(segs)
	ledger, dups := collect(ext, func(r ClaimRecord) string { return r.ClaimID })
	return &Analysis{
		Source:      msg.Source,
		Extractions: ext,
		Claims:      ledger,
		Diagnostics: append(diags, dups...),
	}, nil
}

// Payments validates a remittance message and collects its CLP records.
func (p *Parser) Payments(msg segment.Message) (*Remittance, error) {
	segs := p.extractor.Dialect().Parse(msg.Text)
	if err := p.payments.Check(msg.Source, segs); err != nil {
		return nil, err
	}
	ext, diags := p.extractor.ExtractAll(segs)
	ledger, dups := collect(ext, func(r PaymentRecord) string { return r.ClaimID })
	return &Remittance{
		Source:      msg.Source,
		Payments:    ledger,
		Diagnostics: append(diags, dups...),
	}, nil
}

// collect keys every record of type T into a ledger. Later records replace
// earlier ones with the same id; each replacement yields a DuplicateKey
// diagnostic.
func collect[T segment.Record](ext []segment.Extraction, key func(T) string) (*Ledger[T], []segment.Diagnostic) {
	ledger := NewLedger[T]()
	var diags []segment.Diagnostic
	for _, e := range ext {
		rec, ok := e.Record.(T)
		if !ok {
			continue
		}
		id := key(rec)
		if ledger.Put(id, rec) {
			diags = append(diags, segment.Diagnostic{
				Kind:     segment.DuplicateKey,
				Position: e.Position,
				Tag:      e.Segment.Tag(),
				Message:  fmt.Sprintf("duplicate claim id %s: segment %d replaces the earlier record", id, e.Position),
			})
		}
	}
	return ledger, diags
}
