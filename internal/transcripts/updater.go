package transcripts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/smilebright/dental-ai-platform/internal/actions"
	"github.com/smilebright/dental-ai-platform/internal/appointments"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

var updaterTracer = otel.Tracer("clinic.internal.transcripts")

// trackedActions are the structured messages that embed appointment
// snapshots and therefore go stale on cancellation.
var trackedActions = map[string]struct{}{
	string(actions.ViewUpcomingAppointments): {},
	string(actions.ViewNextAppointment):      {},
	string(actions.RescheduleAppointment):    {},
}

// emptyStateTitle is shown when removing the cancelled reference empties a
// list payload.
func emptyStateTitle(action string) string {
	switch actions.Action(action) {
	case actions.ViewNextAppointment:
		return "No upcoming appointment"
	default:
		return "No appointments found"
	}
}

// cancellationTitle is the sentence that replaces a sole stale reference.
func cancellationTitle(appt *appointments.Appointment) string {
	if appt == nil || appt.Title == "" || appt.ScheduledAt.IsZero() {
		return "Cancelled appointment"
	}
	return fmt.Sprintf("Appointment for %s on %s was cancelled.", appt.Title, appt.ScheduledAt.Format("01/02/2006"))
}

// Updater rewrites historical structured messages after a cancellation so
// transcripts stay accurate.
type Updater struct {
	store  *Store
	fanout realtime.Publisher
	logger *logging.Logger
}

// NewUpdater constructs the consistency updater.
func NewUpdater(store *Store, fanout realtime.Publisher, logger *logging.Logger) *Updater {
	if store == nil {
		panic("transcripts: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Updater{store: store, fanout: fanout, logger: logger.Named("transcripts")}
}

// OnAppointmentCancelled scans the patient's staff/assistant messages and
// repairs every entry that references the cancelled appointment. Messages
// without a stale reference are left byte-identical, so re-running is a
// no-op. Each persisted change is propagated as a message:update event.
func (u *Updater) OnAppointmentCancelled(ctx context.Context, appt *appointments.Appointment, by string) error {
	ctx, span := updaterTracer.Start(ctx, "transcripts.on_appointment_cancelled")
	defer span.End()

	msgs, err := u.store.ListStaffSent(ctx, appt.PatientID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	rewritten := 0
	for i := range msgs {
		msg := &msgs[i]
		sc, ok := DecodeContent(msg.Content)
		if !ok {
			continue
		}
		if _, tracked := trackedActions[sc.Action]; !tracked {
			continue
		}
		if !referencesAppointment(sc.Data, appt.ID) {
			continue
		}

		rewrite(sc, appt)

		content, err := sc.Encode()
		if err != nil {
			u.logger.Error("failed to encode rewritten message", "message_id", msg.ID, "error", err)
			continue
		}
		if content == msg.Content {
			continue
		}
		if err := u.store.UpdateContent(ctx, msg.ID, content); err != nil {
			span.RecordError(err)
			return err
		}
		rewritten++

		msg.Content = content
		if u.fanout != nil {
			ev := realtime.Event{
				Name:      realtime.EventMessageUpdate,
				By:        by,
				PatientID: msg.PatientID,
				Payload:   msg,
			}
			if err := u.fanout.Publish(ctx, ev); err != nil {
				// Fan-out is best effort; the rewrite already committed.
				u.logger.Error("message update fan-out failed", "message_id", msg.ID, "error", err)
			}
		}
	}

	if rewritten > 0 {
		u.logger.Info("transcript repaired after cancellation",
			"patient_id", appt.PatientID,
			"appointment_id", appt.ID,
			"messages_rewritten", rewritten,
		)
	}
	return nil
}

func referencesAppointment(data *ActionData, id uuid.UUID) bool {
	for _, ref := range data.AppointmentIDs() {
		if ref == id {
			return true
		}
	}
	return false
}

// rewrite mutates sc to drop the cancelled reference.
func rewrite(sc *StructuredContent, appt *appointments.Appointment) {
	ids := sc.Data.AppointmentIDs()
	if len(ids) <= 1 {
		// Sole reference: the whole payload described the cancelled visit.
		sc.Data = nil
		sc.Title = cancellationTitle(appt)
		return
	}

	remaining := make([]appointments.Summary, 0, len(sc.Data.List)-1)
	for _, s := range sc.Data.List {
		if s.ID != appt.ID {
			remaining = append(remaining, s)
		}
	}
	sc.Data = &ActionData{List: remaining}
	if len(remaining) == 0 {
		sc.Title = emptyStateTitle(sc.Action)
	}
}
