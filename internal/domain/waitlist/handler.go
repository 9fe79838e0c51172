package waitlist

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicplus/api/internal/domain/clinic"
	"github.com/clinicplus/api/internal/platform/ws"
)

// Handler upgrades wait-list connections and feeds their frames into
// the dispatcher.
type Handler struct {
	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	clinics    clinic.Repository
	logger     zerolog.Logger
}

// NewHandler wires the wait-list WebSocket endpoint.
func NewHandler(hub *ws.Hub, dispatcher *ws.Dispatcher, clinics clinic.Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		clinics:    clinics,
		logger:     logger.With().Str("component", "waitlist_handler").Logger(),
	}
}

// Register mounts the endpoint on the group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/wait-list/ws/:clinicId", h.Serve)
}

// Serve upgrades the request, verifies the clinic exists, hands the
// browser its connection UUID and then pumps frames until the peer
// goes away.
func (h *Handler) Serve(c echo.Context) error {
	clinicID, err := strconv.ParseInt(c.Param("clinicId"), 10, 64)
	if err != nil || clinicID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}

	conn, err := ws.Upgrade(c)
	if err != nil {
		return err
	}

	if _, err := h.clinics.GetByID(c.Request().Context(), clinicID); err != nil {
		reason := "clinic lookup failed"
		if errors.Is(err, clinic.ErrNotFound) {
			reason = "clinic not found"
		}
		h.logger.Warn().Err(err).Int64("clinic_id", clinicID).Msg("connection refused")
		rejectConn(conn, MsgError, clinicID, reason)
		return nil
	}

	client := ws.NewClient(clinicID, conn)
	h.hub.Register(client)
	go client.WritePump()
	defer h.hub.Unregister(client)

	hello, err := ws.NewMessage(MsgCreateUUID, clinicID, CreateUUIDData{UUID: client.ID})
	if err != nil {
		return err
	}
	client.Push(hello)

	for {
		data, err := client.ReadMessage()
		if err != nil {
			return nil
		}
		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			bad, merr := ws.NewMessage(MsgInvalid, clinicID, ws.ErrorData{Error: "malformed message"})
			if merr != nil {
				return merr
			}
			client.Push(bad)
			continue
		}
		h.dispatcher.Enqueue(ws.Inbound{Client: client, Msg: msg})
	}
}

// rejectConn serves connections that never become hub clients: it
// writes one typed error frame, waits for it to flush and closes.
func rejectConn(conn ws.Conn, msgType int, clinicID int64, reason string) {
	msg, err := ws.NewMessage(msgType, clinicID, ws.ErrorData{Error: reason})
	if err == nil {
		if data, merr := json.Marshal(msg); merr == nil {
			conn.WriteMessage(ws.TextMessage, data)
		}
	}
	time.Sleep(disconnectDelay)
	conn.Close()
}
