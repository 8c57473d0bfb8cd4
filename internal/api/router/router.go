package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smilebright/dental-ai-platform/internal/actions"
	"github.com/smilebright/dental-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/smilebright/dental-ai-platform/internal/http/middleware"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	AIHandler          *handlers.AIHandler
	StaffHandler       *handlers.StaffHandler
	RealtimeHandler    *realtime.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	PatientJWTSecret string
	StaffJWTSecret   string

	// Requests per minute per patient on the AI endpoints. Zero disables
	// rate limiting.
	AIRateLimit int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// The catalog is public: clients need it to render action chips before
	// authenticating.
	r.Get("/ai/catalog", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"actions": actions.All()})
	})

	// Patient-facing assistant endpoints.
	r.Group(func(patient chi.Router) {
		patient.Use(httpmiddleware.PatientJWT(cfg.PatientJWTSecret))
		if cfg.AIRateLimit > 0 {
			patient.Use(httpmiddleware.RateLimit(float64(cfg.AIRateLimit)/60, cfg.AIRateLimit))
		}
		patient.Post("/ai/chat-action", cfg.AIHandler.ChatAction)
		patient.Post("/ai/actions", cfg.AIHandler.ExtractIntent)
		patient.Post("/ai/execute-action", cfg.AIHandler.ExecuteAction)
	})

	// Websocket join accepts either token kind; the handler enforces room
	// ownership.
	if cfg.RealtimeHandler != nil {
		r.Group(func(ws chi.Router) {
			ws.Use(httpmiddleware.PatientOrStaffJWT(cfg.PatientJWTSecret, cfg.StaffJWTSecret))
			ws.Get("/ws", cfg.RealtimeHandler.Join)
		})
	}

	// Staff read-only views.
	if cfg.StaffHandler != nil {
		r.Group(func(staff chi.Router) {
			staff.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))
			staff.Get("/staff/patients/{patientID}/transcript", cfg.StaffHandler.GetTranscript)
			staff.Get("/staff/appointments", cfg.StaffHandler.ListAppointments)
		})
	}

	return r
}
