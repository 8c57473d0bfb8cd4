package transcripts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), patientID, SenderPatient, "hello").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	msg, err := store.Insert(context.Background(), patientID, SenderPatient, "hello")
	require.NoError(t, err)
	assert.Equal(t, patientID, msg.PatientID)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEqual(t, uuid.Nil, msg.ID)
}

func TestStoreListStaffSentFiltersByRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM messages\s+WHERE patient_id = \$1 AND sender IN`).
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows(messageCols).
			AddRow(uuid.New(), patientID, SenderAssistant, "hi", now, now))

	msgs, err := store.ListStaffSent(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, SenderAssistant, msgs[0].Sender)
}

func TestStoreUpdateContentMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE messages SET content").
		WithArgs(id, "new content").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateContent(context.Background(), id, "new content")
	assert.Error(t, err)
}
