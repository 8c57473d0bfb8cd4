package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smilebright/dental-ai-platform/internal/actions"
	"github.com/smilebright/dental-ai-platform/internal/observability/metrics"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

var executorTracer = otel.Tracer("clinic.internal.appointments")

// TranscriptRewriter repairs historical messages after a cancellation.
type TranscriptRewriter interface {
	OnAppointmentCancelled(ctx context.Context, appt *Appointment, by string) error
}

// ExecuteRequest carries one confirmed (or to-be-confirmed) clinic action.
type ExecuteRequest struct {
	Action        string    `json:"action"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	NewDateTime   string    `json:"newDateTime,omitempty"`
	Confirmed     bool      `json:"confirmed,omitempty"`
}

// ActionResult is the ephemeral outcome of an executed action. It is
// returned to the caller and never persisted.
type ActionResult struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	Appointment   *Appointment `json:"appointment,omitempty"`
	Error         string       `json:"error,omitempty"`
	SuggestedDate *time.Time   `json:"suggestedDate,omitempty"`
}

// Executor applies the two state-changing actions under ownership and
// confirmation guards, then drives transcript repair and event fan-out.
// Post-commit steps are best effort; their failures are logged, never
// propagated, and never roll back the committed mutation.
type Executor struct {
	store       *Store
	fanout      realtime.Publisher
	transcripts TranscriptRewriter
	logger      *logging.Logger
	metrics     *metrics.ExecutorMetrics

	now            func() time.Time
	suggestionHour int
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithClock overrides the time source; test hook.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithMetrics attaches execution and fan-out counters.
func WithMetrics(m *metrics.ExecutorMetrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithSuggestionHour sets the hour of day proposed after a past-date reject.
func WithSuggestionHour(hour int) ExecutorOption {
	return func(e *Executor) {
		if hour >= 0 && hour < 24 {
			e.suggestionHour = hour
		}
	}
}

// NewExecutor constructs the mutation executor. The fan-out handle and
// transcript rewriter are explicit dependencies, not ambient lookups.
func NewExecutor(store *Store, fanout realtime.Publisher, transcripts TranscriptRewriter, logger *logging.Logger, opts ...ExecutorOption) *Executor {
	if store == nil {
		panic("appointments: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Executor{
		store:          store,
		fanout:         fanout,
		transcripts:    transcripts,
		logger:         logger.Named("appointments"),
		now:            func() time.Time { return time.Now().UTC() },
		suggestionHour: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute dispatches one state-changing action for an authenticated patient.
func (e *Executor) Execute(ctx context.Context, patientID uuid.UUID, req ExecuteRequest) (*ActionResult, error) {
	ctx, span := executorTracer.Start(ctx, "appointments.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.action", req.Action),
		attribute.String("clinic.patient_id", patientID.String()),
	)

	switch actions.Action(req.Action) {
	case actions.RescheduleAppointment, actions.CancelAppointment:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	if req.AppointmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: appointmentId", ErrMissingParameter)
	}

	appt, err := e.store.GetByID(ctx, req.AppointmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	// Ownership precedes the confirmation gate: a foreign appointment is
	// forbidden no matter what the request claims.
	if appt.PatientID != patientID {
		return nil, ErrForbidden
	}

	var res *ActionResult
	if actions.Action(req.Action) == actions.RescheduleAppointment {
		res, err = e.reschedule(ctx, appt, req)
	} else {
		res, err = e.cancel(ctx, appt, req)
	}
	e.metrics.ObserveExecution(req.Action, outcome(res, err))
	return res, err
}

func outcome(res *ActionResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case res != nil && !res.Success:
		return "rejected"
	default:
		return "success"
	}
}

func (e *Executor) reschedule(ctx context.Context, appt *Appointment, req ExecuteRequest) (*ActionResult, error) {
	if appt.Cancelled {
		return nil, ErrAlreadyCancelled
	}
	if req.NewDateTime == "" {
		return nil, fmt.Errorf("%w: newDateTime", ErrMissingParameter)
	}
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}

	newAt, err := parseDateTime(req.NewDateTime, e.suggestionHour)
	if err != nil {
		return nil, fmt.Errorf("%w: newDateTime %q", ErrMissingParameter, req.NewDateTime)
	}

	now := e.now()
	if newAt.Before(now) {
		suggested := e.suggestNextSlot(now)
		return &ActionResult{
			Success:       false,
			Error:         "date_in_past",
			Message:       fmt.Sprintf("That date has already passed. How about %s?", suggested.Format("Monday, January 2 at 3:04 PM")),
			SuggestedDate: &suggested,
		}, nil
	}

	updated, err := e.store.Reschedule(ctx, appt.ID, newAt)
	if err != nil {
		if err == ErrNotFound {
			// Lost a race with a concurrent cancel.
			return nil, ErrAlreadyCancelled
		}
		return nil, err
	}

	e.logger.Info("appointment rescheduled",
		"appointment_id", updated.ID,
		"patient_id", updated.PatientID,
		"scheduled_at", updated.ScheduledAt,
	)
	e.publish(ctx, realtime.EventAppointmentUpdate, updated)

	return &ActionResult{
		Success:     true,
		Message:     fmt.Sprintf("Your appointment %q has been rescheduled to %s.", updated.Title, updated.ScheduledAt.Format("Monday, January 2, 2006 at 3:04 PM")),
		Appointment: updated,
	}, nil
}

func (e *Executor) cancel(ctx context.Context, appt *Appointment, req ExecuteRequest) (*ActionResult, error) {
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}
	if appt.Cancelled {
		// Monotonic: the flag is already set, nothing to redo.
		return &ActionResult{
			Success:     true,
			Message:     fmt.Sprintf("Your appointment %q is already cancelled.", appt.Title),
			Appointment: appt,
		}, nil
	}

	cancelled, err := e.store.Cancel(ctx, appt.ID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("appointment cancelled",
		"appointment_id", cancelled.ID,
		"patient_id", cancelled.PatientID,
	)

	// Transcript repair commits before the cancellation event goes out;
	// a subscriber refetching on the event must see repaired rows.
	if e.transcripts != nil {
		if err := e.transcripts.OnAppointmentCancelled(ctx, cancelled, realtime.ByPatient); err != nil {
			// The cancellation already committed; the transcript scan can
			// be retried by cancelling again or via a staff refetch.
			e.logger.Error("transcript repair failed", "appointment_id", cancelled.ID, "error", err)
		}
	}
	e.publish(ctx, realtime.EventAppointmentCancelled, cancelled)

	return &ActionResult{
		Success:     true,
		Message:     fmt.Sprintf("Your appointment %q has been cancelled.", cancelled.Title),
		Appointment: cancelled,
	}, nil
}

func (e *Executor) publish(ctx context.Context, name string, appt *Appointment) {
	if e.fanout == nil {
		return
	}
	ev := realtime.Event{
		Name:      name,
		By:        realtime.ByPatient,
		PatientID: appt.PatientID,
		Payload:   appt,
	}
	if err := e.fanout.Publish(ctx, ev); err != nil {
		e.logger.Error("event fan-out failed", "event", name, "appointment_id", appt.ID, "error", err)
		e.metrics.ObserveFanout(name, "error")
		return
	}
	e.metrics.ObserveFanout(name, "ok")
}

// suggestNextSlot proposes the next calendar day at the configured hour.
func (e *Executor) suggestNextSlot(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), e.suggestionHour, 0, 0, 0, now.Location())
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseDateTime accepts the formats the intent extractor and API clients
// produce. A bare date lands on the default suggestion hour.
func parseDateTime(raw string, defaultHour int) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), defaultHour, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("appointments: unparseable datetime %q", raw)
}
