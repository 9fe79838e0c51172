package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub tracks connected clients keyed by clinic and fans broadcasts out
// to every client of one clinic. All methods are safe for concurrent
// use.
type Hub struct {
	mu      sync.RWMutex
	clinics map[int64]map[*Client]struct{}
	byID    map[uuid.UUID]*Client
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clinics: make(map[int64]map[*Client]struct{}),
		byID:    make(map[uuid.UUID]*Client),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds a client under its clinic.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.clinics[c.ClinicID]
	if !ok {
		room = make(map[*Client]struct{})
		h.clinics[c.ClinicID] = room
	}
	room[c] = struct{}{}
	h.byID[c.ID] = c
	h.logger.Debug().
		Str("client_id", c.ID.String()).
		Int64("clinic_id", c.ClinicID).
		Int("clinic_clients", len(room)).
		Msg("client registered")
}

// Unregister removes a client and closes its outbound queue. Removing
// a client that was never registered is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.clinics[c.ClinicID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.clinics, c.ClinicID)
	}
	delete(h.byID, c.ID)
	c.Close()
	h.logger.Debug().
		Str("client_id", c.ID.String()).
		Int64("clinic_id", c.ClinicID).
		Msg("client unregistered")
}

// Get looks a client up by its connection UUID.
func (h *Hub) Get(id uuid.UUID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byID[id]
	return c, ok
}

// Broadcast pushes a message to every authenticated client of the
// clinic.
func (h *Hub) Broadcast(clinicID int64, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clinics[clinicID] {
		if !c.Authenticated() {
			continue
		}
		c.Push(msg)
	}
}

// ClientCount returns the number of connected clients across all
// clinics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// ClinicClientCount returns the number of clients connected for one
// clinic.
func (h *Hub) ClinicClientCount(clinicID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clinics[clinicID])
}
