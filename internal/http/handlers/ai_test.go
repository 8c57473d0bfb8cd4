package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilebright/dental-ai-platform/internal/appointments"
	"github.com/smilebright/dental-ai-platform/internal/assistant"
	"github.com/smilebright/dental-ai-platform/internal/http/middleware"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/internal/transcripts"
)

type stubLLM struct {
	reply string
}

func (s *stubLLM) Complete(context.Context, assistant.LLMRequest) (assistant.LLMResponse, error) {
	return assistant.LLMResponse{Text: s.reply}, nil
}

type capturePublisher struct {
	events []realtime.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.events = append(p.events, ev)
	return nil
}

var apptCols = []string{"id", "patient_id", "title", "scheduled_at", "location", "type", "cancelled", "created_at", "updated_at"}

func apptRow(a appointments.Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).
		AddRow(a.ID, a.PatientID, a.Title, a.ScheduledAt, a.Location, a.Type, a.Cancelled, a.CreatedAt, a.UpdatedAt)
}

type aiFixture struct {
	apptMock pgxmock.PgxPoolIface
	msgMock  pgxmock.PgxPoolIface
	fanout   *capturePublisher
	handler  *AIHandler
}

func newAIFixture(t *testing.T, llmReply string) *aiFixture {
	t.Helper()
	apptMock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(apptMock.Close)
	msgMock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(msgMock.Close)

	apptStore := appointments.NewStore(apptMock)
	msgStore := transcripts.NewStore(msgMock)
	fanout := &capturePublisher{}
	updater := transcripts.NewUpdater(msgStore, fanout, nil)
	executor := appointments.NewExecutor(apptStore, fanout, updater, nil)
	svc := assistant.NewService(&stubLLM{reply: llmReply}, nil, nil, nil)

	return &aiFixture{
		apptMock: apptMock,
		msgMock:  msgMock,
		fanout:   fanout,
		handler:  NewAIHandler(svc, executor, apptStore, msgStore, fanout, nil),
	}
}

func authedRequest(t *testing.T, patientID uuid.UUID, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	return req.WithContext(middleware.WithPatientID(req.Context(), patientID))
}

func expectInsertMessage(mock pgxmock.PgxPoolIface, patientID uuid.UUID) {
	now := time.Now()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), patientID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
}

func TestChatActionRequiresAuth(t *testing.T) {
	f := newAIFixture(t, `{"action":"general-response","data":null,"response":"hi"}`)

	req := httptest.NewRequest(http.MethodPost, "/ai/chat-action", bytes.NewReader([]byte(`{"message":"hi"}`)))
	rec := httptest.NewRecorder()
	f.handler.ChatAction(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatActionRequiresMessage(t *testing.T) {
	f := newAIFixture(t, `{"action":"general-response","data":null,"response":"hi"}`)

	rec := httptest.NewRecorder()
	f.handler.ChatAction(rec, authedRequest(t, uuid.New(), "/ai/chat-action", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatActionPersistsBothTurns(t *testing.T) {
	f := newAIFixture(t, `{"action":"view-next-appointment","data":null,"response":"Your cleaning is coming up."}`)
	patientID := uuid.New()
	appt := appointments.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		Title:       "Teeth Cleaning",
		ScheduledAt: time.Now().UTC().AddDate(0, 0, 7),
	}

	f.apptMock.ExpectQuery("SELECT .* FROM appointments WHERE patient_id").
		WithArgs(patientID).
		WillReturnRows(apptRow(appt))
	expectInsertMessage(f.msgMock, patientID)
	expectInsertMessage(f.msgMock, patientID)

	rec := httptest.NewRecorder()
	f.handler.ChatAction(rec, authedRequest(t, patientID, "/ai/chat-action", map[string]string{"message": "when is my next visit?"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var result assistant.ChatActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "view-next-appointment", string(result.Action))
	assert.Equal(t, "Your cleaning is coming up.", result.Response)

	require.NoError(t, f.msgMock.ExpectationsWereMet())
	require.Len(t, f.fanout.events, 2)
	for _, ev := range f.fanout.events {
		assert.Equal(t, realtime.EventMessageNew, ev.Name)
		assert.Equal(t, patientID, ev.PatientID)
	}

	// The assistant turn carries a structured snapshot of the appointment.
	assistantMsg := f.fanout.events[1].Payload.(*transcripts.Message)
	sc, ok := transcripts.DecodeContent(assistantMsg.Content)
	require.True(t, ok)
	require.NotNil(t, sc.Data)
	require.NotNil(t, sc.Data.Single)
	assert.Equal(t, appt.ID, sc.Data.Single.ID)
}

func TestExtractIntentEndpoint(t *testing.T) {
	f := newAIFixture(t, "")
	patientID := uuid.New()
	appt := appointments.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		Title:       "Teeth Cleaning",
		ScheduledAt: time.Now().UTC().AddDate(0, 0, 7),
	}

	f.apptMock.ExpectQuery("SELECT .* FROM appointments WHERE patient_id").
		WithArgs(patientID).
		WillReturnRows(apptRow(appt))

	rec := httptest.NewRecorder()
	f.handler.ExtractIntent(rec, authedRequest(t, patientID, "/ai/actions", map[string]string{"message": "cancel my cleaning"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Intent assistant.AppointmentIntent `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, assistant.IntentCancel, body.Intent.Type)
	require.NotNil(t, body.Intent.AppointmentID)
	assert.Equal(t, appt.ID, *body.Intent.AppointmentID)
}

func TestExecuteActionStatusMapping(t *testing.T) {
	patientID := uuid.New()
	ownedID := uuid.New()
	foreign := appointments.Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Title:       "Filling",
		ScheduledAt: time.Now().UTC().AddDate(0, 0, 2),
	}

	cases := []struct {
		name       string
		body       map[string]any
		expect     func(f *aiFixture)
		wantStatus int
	}{
		{
			name:       "unknown action",
			body:       map[string]any{"action": "view-invoices", "appointmentId": ownedID},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not found",
			body: map[string]any{"action": "cancel-appointment", "appointmentId": ownedID, "confirmed": true},
			expect: func(f *aiFixture) {
				f.apptMock.ExpectQuery("SELECT .* FROM appointments WHERE id").
					WithArgs(ownedID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "foreign appointment",
			body: map[string]any{"action": "cancel-appointment", "appointmentId": foreign.ID, "confirmed": true},
			expect: func(f *aiFixture) {
				f.apptMock.ExpectQuery("SELECT .* FROM appointments WHERE id").
					WithArgs(foreign.ID).
					WillReturnRows(apptRow(foreign))
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "missing confirmation",
			body: map[string]any{"action": "cancel-appointment", "appointmentId": ownedID},
			expect: func(f *aiFixture) {
				owned := appointments.Appointment{ID: ownedID, PatientID: patientID, Title: "Cleaning", ScheduledAt: time.Now().UTC().AddDate(0, 0, 2)}
				f.apptMock.ExpectQuery("SELECT .* FROM appointments WHERE id").
					WithArgs(ownedID).
					WillReturnRows(apptRow(owned))
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAIFixture(t, "")
			if tc.expect != nil {
				tc.expect(f)
			}
			rec := httptest.NewRecorder()
			f.handler.ExecuteAction(rec, authedRequest(t, patientID, "/ai/execute-action", tc.body))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

// TestExecuteActionCancelFlow drives a confirmed cancellation through the
// real executor, updater, and hub: the appointment flips to cancelled, the
// stale transcript entry is rewritten, and both the patient room and the
// staff room observe the events.
func TestExecuteActionCancelFlow(t *testing.T) {
	apptMock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer apptMock.Close()
	msgMock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer msgMock.Close()

	hub := realtime.NewHub(nil)
	apptStore := appointments.NewStore(apptMock)
	msgStore := transcripts.NewStore(msgMock)
	updater := transcripts.NewUpdater(msgStore, hub, nil)
	executor := appointments.NewExecutor(apptStore, hub, updater, nil)
	svc := assistant.NewService(&stubLLM{reply: ""}, nil, nil, nil)
	handler := NewAIHandler(svc, executor, apptStore, msgStore, hub, nil)

	patientID := uuid.New()
	appt := appointments.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		Title:       "Teeth Cleaning",
		ScheduledAt: time.Date(2026, 6, 12, 15, 0, 0, 0, time.UTC),
	}
	cancelled := appt
	cancelled.Cancelled = true

	summary := appt.Summarize()
	staleContent, err := (&transcripts.StructuredContent{
		Action: "view-next-appointment",
		Title:  "Your next appointment",
		Data:   &transcripts.ActionData{Single: &summary},
	}).Encode()
	require.NoError(t, err)
	staleMsg := transcripts.Message{ID: uuid.New(), PatientID: patientID, Sender: transcripts.SenderAssistant, Content: staleContent}

	apptMock.ExpectQuery("SELECT .* FROM appointments WHERE id").
		WithArgs(appt.ID).
		WillReturnRows(apptRow(appt))
	apptMock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID).
		WillReturnRows(apptRow(cancelled))
	msgMock.ExpectQuery("SELECT .* FROM messages").
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "patient_id", "sender", "content", "created_at", "updated_at"}).
			AddRow(staleMsg.ID, staleMsg.PatientID, staleMsg.Sender, staleMsg.Content, time.Now(), time.Now()))
	msgMock.ExpectExec("UPDATE messages SET content").
		WithArgs(staleMsg.ID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	patientCh, cancelPatient := hub.Subscribe(realtime.PatientRoom(patientID))
	defer cancelPatient()
	staffCh, cancelStaff := hub.Subscribe(realtime.StaffRoom)
	defer cancelStaff()

	rec := httptest.NewRecorder()
	handler.ExecuteAction(rec, authedRequest(t, patientID, "/ai/execute-action", map[string]any{
		"action":        "cancel-appointment",
		"appointmentId": appt.ID,
		"confirmed":     true,
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var result appointments.ActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	require.NotNil(t, result.Appointment)
	assert.True(t, result.Appointment.Cancelled)

	require.NoError(t, apptMock.ExpectationsWereMet())
	require.NoError(t, msgMock.ExpectationsWereMet())

	// Both rooms see the transcript repair before the cancellation itself.
	for _, ch := range []<-chan []byte{patientCh, staffCh} {
		var names []string
		for i := 0; i < 2; i++ {
			select {
			case data := <-ch:
				var ev realtime.Event
				require.NoError(t, json.Unmarshal(data, &ev))
				names = append(names, ev.Name)
			case <-time.After(time.Second):
				t.Fatal("missing realtime event")
			}
		}
		assert.Equal(t, []string{realtime.EventMessageUpdate, realtime.EventAppointmentCancelled}, names)
	}
}
