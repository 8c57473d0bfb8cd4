package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Store{pool: pool}
}

const appointmentColumns = `id, patient_id, title, scheduled_at, location, type, cancelled, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.Title,
		&a.ScheduledAt,
		&a.Location,
		&a.Type,
		&a.Cancelled,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: scan failed: %w", err)
	}
	return &a, nil
}

// GetByID fetches one appointment, cancelled or not.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(s.pool.QueryRow(ctx, query, id))
}

// ListByPatient returns the patient's appointments, soonest first.
// Cancelled rows are included so transcripts stay resolvable.
func (s *Store) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY scheduled_at`
	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

// Reschedule moves a non-cancelled appointment to a new instant and returns
// the updated row.
func (s *Store) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET scheduled_at = $2, updated_at = now()
		WHERE id = $1 AND cancelled = false
		RETURNING ` + appointmentColumns
	return scanAppointment(s.pool.QueryRow(ctx, query, id, scheduledAt))
}

// Cancel flips the cancelled flag. The row is never deleted.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET cancelled = true, updated_at = now()
		WHERE id = $1
		RETURNING ` + appointmentColumns
	return scanAppointment(s.pool.QueryRow(ctx, query, id))
}
