package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilebright/dental-ai-platform/internal/http/handlers"
)

func newTestRouter() http.Handler {
	return New(&Config{
		AIHandler:        handlers.NewAIHandler(nil, nil, nil, nil, nil, nil),
		PatientJWTSecret: "patient-secret",
		StaffJWTSecret:   "staff-secret",
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCatalogEndpointIsPublic(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ai/catalog", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Actions []string `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Actions, "general-response")
	assert.Len(t, body.Actions, 8)
}

func TestAIEndpointsRequirePatientToken(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/ai/chat-action", "/ai/actions", "/ai/execute-action"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestStaffEndpointsRequireStaffToken(t *testing.T) {
	r := New(&Config{
		AIHandler:        handlers.NewAIHandler(nil, nil, nil, nil, nil, nil),
		StaffHandler:     handlers.NewStaffHandler(nil, nil),
		PatientJWTSecret: "patient-secret",
		StaffJWTSecret:   "staff-secret",
	})
	for _, path := range []string{"/staff/appointments", "/staff/patients/abc/transcript"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
