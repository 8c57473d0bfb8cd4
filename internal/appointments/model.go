package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a scheduled clinic visit owned by a patient. Cancellation is
// a soft flag so historical transcripts keep a valid reference.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patientId"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Location    string    `json:"location,omitempty"`
	Type        string    `json:"type,omitempty"`
	Cancelled   bool      `json:"cancelled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary is the snapshot of an appointment embedded in structured chat
// messages and realtime event payloads.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Location    string    `json:"location,omitempty"`
	Cancelled   bool      `json:"cancelled,omitempty"`
}

// Summarize builds the embeddable snapshot.
func (a *Appointment) Summarize() Summary {
	return Summary{
		ID:          a.ID,
		Title:       a.Title,
		ScheduledAt: a.ScheduledAt,
		Location:    a.Location,
		Cancelled:   a.Cancelled,
	}
}
