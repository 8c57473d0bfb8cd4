package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smilebright/dental-ai-platform/internal/http/middleware"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// Handler upgrades subscriber connections and joins them to their rooms.
// Patients can only join their own private room; doctors and admins join the
// shared staff room.
type Handler struct {
	hub      *Hub
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket join handler.
func NewHandler(hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:    hub,
		logger: logger.Named("realtime.ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are vetted by the CORS layer; the socket itself
			// carries no state-changing operations.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Join handles GET /ws?patientId=&doctorId=&isAdmin=.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var rooms []string

	if pid := r.URL.Query().Get("patientId"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			http.Error(w, "invalid patientId", http.StatusBadRequest)
			return
		}
		authed, ok := middleware.PatientIDFromContext(r.Context())
		if !ok || authed != patientID {
			http.Error(w, "patient room not permitted", http.StatusForbidden)
			return
		}
		rooms = append(rooms, PatientRoom(patientID))
	}

	if r.URL.Query().Get("doctorId") != "" || r.URL.Query().Get("isAdmin") == "true" {
		if !middleware.IsStaff(r.Context()) {
			http.Error(w, "staff room not permitted", http.StatusForbidden)
			return
		}
		rooms = append(rooms, StaffRoom)
	}

	if len(rooms) == 0 {
		http.Error(w, "no room requested", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	events, cancel := h.hub.Subscribe(rooms...)
	h.logger.Info("subscriber joined", "rooms", rooms, "remote", r.RemoteAddr)

	// Reader: drains control frames and detects disconnect.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer: pushes fan-out events until the subscription ends.
	go func() {
		defer func() { _ = conn.Close() }()
		for data := range events {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cancel()
				return
			}
		}
	}()
}
