package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

// subscriber is one live connection's outbound queue. A full queue means the
// consumer is too slow; the event is dropped rather than blocking the pipeline.
type subscriber struct {
	send chan []byte
}

const subscriberBuffer = 32

// Hub routes events to room subscribers in-process.
type Hub struct {
	logger *logging.Logger

	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger.Named("realtime"),
		rooms:  make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber in the given rooms and returns its
// outbound channel plus an unsubscribe func.
func (h *Hub) Subscribe(rooms ...string) (<-chan []byte, func()) {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	for _, room := range rooms {
		if room == "" {
			continue
		}
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*subscriber]struct{})
		}
		h.rooms[room][sub] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, room := range rooms {
				if members, ok := h.rooms[room]; ok {
					delete(members, sub)
					if len(members) == 0 {
						delete(h.rooms, room)
					}
				}
			}
			h.mu.Unlock()
			close(sub.send)
		})
	}
	return sub.send, cancel
}

// Publish delivers the event to the affected patient's private room and the
// shared staff room.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: marshal event %s: %w", ev.Name, err)
	}

	delivered := h.broadcast(PatientRoom(ev.PatientID), data)
	delivered += h.broadcast(StaffRoom, data)

	h.logger.Debug("event published",
		"event", ev.Name,
		"patient_id", ev.PatientID,
		"by", ev.By,
		"subscribers", delivered,
	)
	return nil
}

// RoomSize reports the current subscriber count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) broadcast(room string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for sub := range h.rooms[room] {
		select {
		case sub.send <- data:
			n++
		default:
			// Slow consumer; it will refetch on reconnect.
		}
	}
	return n
}
