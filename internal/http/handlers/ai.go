package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/smilebright/dental-ai-platform/internal/actions"
	"github.com/smilebright/dental-ai-platform/internal/appointments"
	"github.com/smilebright/dental-ai-platform/internal/assistant"
	"github.com/smilebright/dental-ai-platform/internal/http/middleware"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/internal/transcripts"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// AIHandler serves the patient-facing assistant endpoints: chat-action
// normalization, structured intent extraction, and action execution.
type AIHandler struct {
	assistant   *assistant.Service
	executor    *appointments.Executor
	appts       *appointments.Store
	transcripts *transcripts.Store
	fanout      realtime.Publisher
	logger      *logging.Logger
}

func NewAIHandler(
	svc *assistant.Service,
	executor *appointments.Executor,
	appts *appointments.Store,
	transcriptStore *transcripts.Store,
	fanout realtime.Publisher,
	logger *logging.Logger,
) *AIHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AIHandler{
		assistant:   svc,
		executor:    executor,
		appts:       appts,
		transcripts: transcriptStore,
		fanout:      fanout,
		logger:      logger.Named("ai_handler"),
	}
}

type chatActionRequest struct {
	Message             string                  `json:"message"`
	ConversationHistory []assistant.ChatMessage `json:"conversationHistory,omitempty"`
	PatientContext      *patientContextBody     `json:"patientContext,omitempty"`
}

// patientContextBody lets callers supply context the core stores do not
// hold. Appointments always come from the database, never from the client.
type patientContextBody struct {
	TreatmentPlans []assistant.TreatmentPlan `json:"treatmentPlans,omitempty"`
	Invoices       []assistant.Invoice       `json:"invoices,omitempty"`
	DoctorName     string                    `json:"doctorName,omitempty"`
}

// ChatAction normalizes one free-text patient message into a catalog action.
func (h *AIHandler) ChatAction(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	appts, err := h.appts.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err, "patient_id", patientID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "failed to load patient context",
			"action": string(actions.GeneralResponse),
			"data":   map[string]string{"error": "failed to load patient context"},
		})
		return
	}

	pctx := assistant.PatientContext{Appointments: appts}
	if req.PatientContext != nil {
		pctx.TreatmentPlans = req.PatientContext.TreatmentPlans
		pctx.Invoices = req.PatientContext.Invoices
		pctx.DoctorName = req.PatientContext.DoctorName
	}

	result := h.assistant.ChatAction(r.Context(), assistant.ChatActionRequest{
		PatientID: patientID,
		Message:   req.Message,
		History:   req.ConversationHistory,
		Context:   pctx,
	})

	h.recordTurn(r, patientID, req.Message, result, appts)

	writeJSON(w, http.StatusOK, result)
}

// recordTurn persists both sides of the exchange and announces them on the
// realtime channels. Failures here never affect the chat response.
func (h *AIHandler) recordTurn(r *http.Request, patientID uuid.UUID, userMessage string, result assistant.ChatActionResult, appts []appointments.Appointment) {
	if h.transcripts == nil {
		return
	}
	ctx := r.Context()

	if msg, err := h.transcripts.Insert(ctx, patientID, transcripts.SenderPatient, userMessage); err != nil {
		h.logger.Error("persist patient message failed", "error", err, "patient_id", patientID)
	} else {
		h.publishMessage(ctx, msg)
	}

	content := h.assistantContent(result, appts)
	if msg, err := h.transcripts.Insert(ctx, patientID, transcripts.SenderAssistant, content); err != nil {
		h.logger.Error("persist assistant message failed", "error", err, "patient_id", patientID)
	} else {
		h.publishMessage(ctx, msg)
	}
}

// publishMessage fans a freshly stored message out to the patient and staff
// rooms. Best effort only.
func (h *AIHandler) publishMessage(ctx context.Context, msg *transcripts.Message) {
	if h.fanout == nil || msg == nil {
		return
	}
	ev := realtime.Event{
		Name:      realtime.EventMessageNew,
		By:        realtime.ByPatient,
		PatientID: msg.PatientID,
		Payload:   msg,
		At:        msg.CreatedAt,
	}
	if err := h.fanout.Publish(ctx, ev); err != nil {
		h.logger.Error("message fan-out failed", "error", err, "message_id", msg.ID)
	}
}

// assistantContent renders the reply for the transcript. View actions are
// stored structured so later cancellations can rewrite them; everything
// else is plain text.
func (h *AIHandler) assistantContent(result assistant.ChatActionResult, appts []appointments.Appointment) string {
	var data *transcripts.ActionData
	switch result.Action {
	case actions.ViewUpcomingAppointments:
		list := summarizeActive(appts)
		data = &transcripts.ActionData{List: list}
	case actions.ViewNextAppointment:
		if next := nextActive(appts, time.Now().UTC()); next != nil {
			s := next.Summarize()
			data = &transcripts.ActionData{Single: &s}
		}
	default:
		return result.Response
	}
	if data == nil {
		return result.Response
	}
	sc := transcripts.StructuredContent{
		Action: string(result.Action),
		Title:  result.Response,
		Data:   data,
	}
	encoded, err := sc.Encode()
	if err != nil {
		return result.Response
	}
	return encoded
}

func summarizeActive(appts []appointments.Appointment) []appointments.Summary {
	var out []appointments.Summary
	for _, a := range appts {
		if a.Cancelled {
			continue
		}
		out = append(out, a.Summarize())
	}
	return out
}

func nextActive(appts []appointments.Appointment, now time.Time) *appointments.Appointment {
	var next *appointments.Appointment
	for i := range appts {
		a := &appts[i]
		if a.Cancelled || a.ScheduledAt.Before(now) {
			continue
		}
		if next == nil || a.ScheduledAt.Before(next.ScheduledAt) {
			next = a
		}
	}
	return next
}

type extractIntentRequest struct {
	Message string `json:"message"`
}

// ExtractIntent runs the rule-based appointment intent extraction against
// the caller's live appointments.
func (h *AIHandler) ExtractIntent(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req extractIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	appts, err := h.appts.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err, "patient_id", patientID)
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	intent := assistant.ExtractAppointmentIntent(req.Message, appts, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{"intent": intent})
}

// ExecuteAction applies a confirmed appointment mutation.
func (h *AIHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req appointments.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.executor.Execute(r.Context(), patientID, req)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("execute action failed", "error", err, "patient_id", patientID, "action", req.Action)
		}
		writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
		return
	}

	if result.Success && result.Appointment != nil && req.Action == string(actions.RescheduleAppointment) {
		h.recordReschedule(r, patientID, result)
	}

	writeJSON(w, http.StatusOK, result)
}

// recordReschedule stores the confirmation as a structured transcript
// message so it stays consistent if the appointment is later cancelled.
func (h *AIHandler) recordReschedule(r *http.Request, patientID uuid.UUID, result *appointments.ActionResult) {
	if h.transcripts == nil {
		return
	}
	summary := result.Appointment.Summarize()
	sc := transcripts.StructuredContent{
		Action: string(actions.RescheduleAppointment),
		Title:  result.Message,
		Data:   &transcripts.ActionData{Single: &summary},
	}
	encoded, err := sc.Encode()
	if err != nil {
		return
	}
	msg, err := h.transcripts.Insert(r.Context(), patientID, transcripts.SenderAssistant, encoded)
	if err != nil {
		h.logger.Error("persist reschedule message failed", "error", err, "patient_id", patientID)
		return
	}
	h.publishMessage(r.Context(), msg)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appointments.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, appointments.ErrMissingParameter),
		errors.Is(err, appointments.ErrConfirmationRequired),
		errors.Is(err, appointments.ErrUnknownAction),
		errors.Is(err, appointments.ErrAlreadyCancelled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
