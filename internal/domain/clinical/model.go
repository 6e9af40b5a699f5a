package clinical

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record kinds produced by the clinical schema.
const (
	KindHeader      = "header"
	KindPatient     = "patient"
	KindOrder       = "order"
	KindObservation = "observation"
)

// HeaderRecord is built from MSH. JSON keys follow the extraction document
// format.
type HeaderRecord struct {
	MessageType string `json:"Message Type"`
	Sender      string `json:"From"`
	Receiver    string `json:"To"`
}

func (HeaderRecord) Kind() string { return KindHeader }

// PatientRecord is built from PID; the name components are joined by spaces.
type PatientRecord struct {
	Name   string `json:"Patient Name"`
	DOB    string `json:"DOB"`
	Gender string `json:"Gender"`
}

func (PatientRecord) Kind() string { return KindPatient }

// OrderRecord is built from OBR.
type OrderRecord struct {
	OrderNumber string `json:"Order Number"`
	TestName    string `json:"Test Name"`
}

func (OrderRecord) Kind() string { return KindOrder }

// ObservationRecord is built from OBX.
type ObservationRecord struct {
	TestName       string `json:"Test Name" parquet:"test_name"`
	Result         string `json:"Result" parquet:"result"`
	Units          string `json:"Units" parquet:"units"`
	ReferenceRange string `json:"Reference Range" parquet:"reference_range"`
}

func (ObservationRecord) Kind() string { return KindObservation }

// Line renders the observation for console and log summaries.
func (o ObservationRecord) Line() string {
	return fmt.Sprintf("Test Name: %s, Result: %s %s (Reference: %s)", o.TestName, o.Result, o.Units, o.ReferenceRange)
}

// StoredMessage is an accepted clinical message with its observations.
// MessageTime is MSH-7 and stays zero when the header carries no parseable
// timestamp.
type StoredMessage struct {
	ID           uuid.UUID           `json:"id"`
	Source       string              `json:"source"`
	MessageType  string              `json:"message_type"`
	ControlID    string              `json:"control_id"`
	Sender       string              `json:"sender"`
	Receiver     string              `json:"receiver"`
	PatientName  string              `json:"patient_name"`
	MessageTime  time.Time           `json:"message_time"`
	ReceivedAt   time.Time           `json:"received_at"`
	Observations []ObservationRecord `json:"observations,omitempty"`
}

// StoredObservation is one persisted observation row.
type StoredObservation struct {
	ID             uuid.UUID `json:"id"`
	MessageID      uuid.UUID `json:"message_id"`
	Position       int       `json:"position"`
	TestName       string    `json:"test_name"`
	Result         string    `json:"result"`
	Units          string    `json:"units"`
	ReferenceRange string    `json:"reference_range"`
	CreatedAt      time.Time `json:"created_at"`
}
