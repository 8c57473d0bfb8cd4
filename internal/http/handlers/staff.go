package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// StaffHandler serves read-only staff views over the primary database.
type StaffHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewStaffHandler(db *sql.DB, logger *logging.Logger) *StaffHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffHandler{
		db:     db,
		logger: logger.Named("staff_handler"),
	}
}

// TranscriptEntry is one row of a patient transcript as staff see it.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetTranscript returns the full message history for one patient, oldest
// first.
func (h *StaffHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	rows, err := h.db.QueryContext(r.Context(),
		`SELECT id, sender, content, created_at, updated_at
		 FROM messages
		 WHERE patient_id = $1
		 ORDER BY created_at`, patientID)
	if err != nil {
		h.logger.Error("transcript query failed", "error", err, "patient_id", patientID)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	entries := make([]TranscriptEntry, 0)
	for rows.Next() {
		var e TranscriptEntry
		if err := rows.Scan(&e.ID, &e.Sender, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
			h.logger.Error("transcript scan failed", "error", err)
			http.Error(w, "failed to load transcript", http.StatusInternalServerError)
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("transcript rows failed", "error", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patientId": patientID,
		"messages":  entries,
	})
}

// AppointmentRow is one appointment in the staff schedule view.
type AppointmentRow struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
	Cancelled   bool      `json:"cancelled"`
}

// ListAppointments returns clinic-wide appointments. ?from limits the view
// to appointments on or after the given RFC 3339 instant; ?cancelled=true
// includes cancelled rows.
func (h *StaffHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	from := time.Time{}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	includeCancelled := r.URL.Query().Get("cancelled") == "true"

	rows, err := h.db.QueryContext(r.Context(),
		`SELECT id, patient_id, title, scheduled_at, location, type, cancelled
		 FROM appointments
		 WHERE scheduled_at >= $1 AND (cancelled = false OR $2)
		 ORDER BY scheduled_at`, from, includeCancelled)
	if err != nil {
		h.logger.Error("appointments query failed", "error", err)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := make([]AppointmentRow, 0)
	for rows.Next() {
		var a AppointmentRow
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Title, &a.ScheduledAt, &a.Location, &a.Type, &a.Cancelled); err != nil {
			h.logger.Error("appointment scan failed", "error", err)
			http.Error(w, "failed to load appointments", http.StatusInternalServerError)
			return
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("appointment rows failed", "error", err)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}
