// Package realtime fans state-change events out to live subscriber channels:
// one private room per patient plus a shared staff room. Delivery is best
// effort; a disconnected subscriber misses the event and recovers by
// refetching.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names carried to subscribers. Payloads are always full snapshots.
const (
	EventAppointmentNew       = "appointment:new"
	EventAppointmentUpdate    = "appointment:update"
	EventAppointmentCancelled = "appointment:cancelled"
	EventInvoiceCreated       = "invoice:created"
	EventInvoicePaid          = "invoice:paid"
	EventProcedureCompleted   = "procedure:completed"
	EventMessageNew           = "message:new"
	EventMessageUpdate        = "message:update"
	EventBrandingUpdated      = "branding:updated"
)

// Originator values for Event.By.
const (
	ByPatient = "patient"
	ByDoctor  = "doctor"
)

// Event is one state change, addressed to the affected patient's private room
// and the shared staff room.
type Event struct {
	Name      string    `json:"event"`
	By        string    `json:"by"`
	PatientID uuid.UUID `json:"patientId"`
	Payload   any       `json:"data"`
	At        time.Time `json:"at"`
}

// Publisher is the fan-out handle injected into mutating components.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PatientRoom returns the private room name for a patient.
func PatientRoom(patientID uuid.UUID) string {
	return "patient:" + patientID.String()
}

// StaffRoom is the shared room every staff/admin subscriber joins.
const StaffRoom = "staff"
