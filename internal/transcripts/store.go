package transcripts

import (
	"context"
	"fmt"

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

// Store persists transcript messages in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("transcripts: pgx pool required")
	}
	return &Store{pool: pool}
}

// Insert appends a new message and returns it with persistence timestamps.
func (s *Store) Insert(ctx context.Context, patientID uuid.UUID, sender, content string) (*Message, error) {
	msg := Message{
		ID:        uuid.New(),
		PatientID: patientID,
		Sender:    sender,
		Content:   content,
	}
	query := `
		INSERT INTO messages (id, patient_id, sender, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	if err := s.pool.QueryRow(ctx, query, msg.ID, patientID, sender, content).
		Scan(&msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, fmt.Errorf("transcripts: insert failed: %w", err)
	}
	return &msg, nil
}

// ListByPatient returns the patient's full transcript in order.
func (s *Store) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, patient_id, sender, content, created_at, updated_at
		FROM messages
		WHERE patient_id = $1
		ORDER BY created_at
	`
	return s.list(ctx, query, patientID)
}

// ListStaffSent returns the patient's staff/assistant messages in order.
// Only those can embed structured appointment snapshots.
func (s *Store) ListStaffSent(ctx context.Context, patientID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, patient_id, sender, content, created_at, updated_at
		FROM messages
		WHERE patient_id = $1 AND sender IN ('assistant', 'staff')
		ORDER BY created_at
	`
	return s.list(ctx, query, patientID)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcripts: list failed: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Sender, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("transcripts: scan failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcripts: list rows: %w", err)
	}
	return out, nil
}

// UpdateContent rewrites one message's content in place.
func (s *Store) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	query := `UPDATE messages SET content = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, content)
	if err != nil {
		return fmt.Errorf("transcripts: update content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcripts: update content: message %s not found", id)
	}
	return nil
}
