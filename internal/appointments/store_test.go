package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

var apptCols = []string{"id", "patient_id", "title", "scheduled_at", "location", "type", "cancelled", "created_at", "updated_at"}

func apptRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).
		AddRow(a.ID, a.PatientID, a.Title, a.ScheduledAt, a.Location, a.Type, a.Cancelled, a.CreatedAt, a.UpdatedAt)
}

func testAppointment(patientID uuid.UUID) Appointment {
	now := time.Now().UTC().Truncate(time.Second)
	return Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		Title:       "Teeth Cleaning",
		ScheduledAt: now.AddDate(0, 0, 7),
		Location:    "Room 2",
		Type:        "hygiene",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStoreGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	want := testAppointment(uuid.New())

	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").
		WithArgs(want.ID).
		WillReturnRows(apptRow(want))

	got, err := store.GetByID(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title {
		t.Fatalf("unexpected appointment: %+v", got)
	}
}

func TestStoreGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetByID(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListByPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	patientID := uuid.New()
	first := testAppointment(patientID)
	second := testAppointment(patientID)
	second.Cancelled = true

	rows := pgxmock.NewRows(apptCols).
		AddRow(first.ID, first.PatientID, first.Title, first.ScheduledAt, first.Location, first.Type, first.Cancelled, first.CreatedAt, first.UpdatedAt).
		AddRow(second.ID, second.PatientID, second.Title, second.ScheduledAt, second.Location, second.Type, second.Cancelled, second.CreatedAt, second.UpdatedAt)

	mock.ExpectQuery("SELECT .* FROM appointments WHERE patient_id").
		WithArgs(patientID).
		WillReturnRows(rows)

	got, err := store.ListByPatient(context.Background(), patientID)
	if err != nil {
		t.Fatalf("list by patient: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(got))
	}
	if !got[1].Cancelled {
		t.Fatal("cancelled rows must be included")
	}
}

func TestStoreReschedule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := testAppointment(uuid.New())
	newAt := appt.ScheduledAt.AddDate(0, 0, 3)
	moved := appt
	moved.ScheduledAt = newAt

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, newAt).
		WillReturnRows(apptRow(moved))

	got, err := store.Reschedule(context.Background(), appt.ID, newAt)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !got.ScheduledAt.Equal(newAt) {
		t.Fatalf("expected %v, got %v", newAt, got.ScheduledAt)
	}
}

func TestStoreRescheduleCancelledRowIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	// The guarded UPDATE matches no rows once cancelled = true.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.Reschedule(context.Background(), id, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := testAppointment(uuid.New())
	cancelled := appt
	cancelled.Cancelled = true

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID).
		WillReturnRows(apptRow(cancelled))

	got, err := store.Cancel(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !got.Cancelled {
		t.Fatal("expected cancelled flag set")
	}
}
