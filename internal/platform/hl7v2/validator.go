package hl7v2

import "github.com/ehr/interchange/internal/platform/segment"

// Minimum field counts (tag included) for the header and patient segments.
const (
	minMSHFields = 12
	minPIDFields = 8
)

// DefaultValidator checks the structure every result message must have:
// header, patient, order and observation segments, with complete MSH and PID.
func DefaultValidator() segment.Validator {
	return segment.Validator{
		Required: []string{"MSH", "PID", "OBR", "OBX"},
		MinFields: []segment.FieldCountRule{
			{Tag: "MSH", Name: "header", Min: minMSHFields},
			{Tag: "PID", Name: "patient", Min: minPIDFields},
		},
	}
}
