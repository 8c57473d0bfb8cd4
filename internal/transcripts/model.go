// Package transcripts owns the per-patient message history. Some entries
// embed structured snapshots of appointments; when one of those appointments
// is cancelled the updater rewrites the affected entries in place so old
// transcripts never show a live booking that no longer exists.
package transcripts

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/smilebright/dental-ai-platform/internal/appointments"
)

// Sender roles on a message.
const (
	SenderPatient   = "patient"
	SenderAssistant = "assistant"
	SenderStaff     = "staff"
)

// Message is one persisted transcript entry. Content is either free text or
// a serialized StructuredContent document.
type Message struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActionData is the payload of a structured message: absent, a single
// appointment summary, or an ordered list of them.
type ActionData struct {
	Single *appointments.Summary
	List   []appointments.Summary
}

// MarshalJSON emits null, an object, or an array depending on shape.
func (d *ActionData) MarshalJSON() ([]byte, error) {
	switch {
	case d == nil:
		return []byte("null"), nil
	case d.List != nil:
		return json.Marshal(d.List)
	case d.Single != nil:
		return json.Marshal(d.Single)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON sniffs the first token to pick the variant.
func (d *ActionData) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = ActionData{}
		return nil
	}
	if trimmed[0] == '[' {
		var list []appointments.Summary
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		if list == nil {
			list = []appointments.Summary{}
		}
		*d = ActionData{List: list}
		return nil
	}
	var single appointments.Summary
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return err
	}
	*d = ActionData{Single: &single}
	return nil
}

// AppointmentIDs returns the referenced appointment ids in order.
func (d *ActionData) AppointmentIDs() []uuid.UUID {
	if d == nil {
		return nil
	}
	if d.Single != nil {
		return []uuid.UUID{d.Single.ID}
	}
	ids := make([]uuid.UUID, 0, len(d.List))
	for _, s := range d.List {
		ids = append(ids, s.ID)
	}
	return ids
}

// StructuredContent is the serialized assistant payload embedded in a
// message: the action that produced it, a display title, and the data.
type StructuredContent struct {
	Action string      `json:"action"`
	Title  string      `json:"title,omitempty"`
	Data   *ActionData `json:"data"`
}

// Encode serializes structured content back into message form. Field order
// is fixed by the struct so an unchanged document re-encodes byte-identical.
func (c *StructuredContent) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeContent classifies raw message content. Parse failure or a document
// carrying neither action nor data is plain text, not an error.
func DecodeContent(raw string) (*StructuredContent, bool) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var sc StructuredContent
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return nil, false
	}
	if sc.Action == "" && (sc.Data == nil || (sc.Data.Single == nil && sc.Data.List == nil)) {
		return nil, false
	}
	return &sc, true
}
