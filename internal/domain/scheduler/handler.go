package scheduler

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

// Handler upgrades scheduler connections and feeds their frames into
// the dispatcher.
type Handler struct {
	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	clinics    clinic.Repository
	logger     zerolog.Logger
}

// NewHandler wires the scheduler WebSocket endpoint.
func NewHandler(hub *ws.Hub, dispatcher *ws.Dispatcher, clinics clinic.Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		clinics:    clinics,
		logger:     logger.With().Str("component", "scheduler_handler").Logger(),
	}
}

// Register mounts the endpoint on the group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/scheduler/ws/:clinicId", h.Serve)
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
		if msg, merr := ws.NewMessage(MsgError, clinicID, ws.ErrorData{Error: reason}); merr == nil {
			if data, jerr := json.Marshal(msg); jerr == nil {
				conn.WriteMessage(ws.TextMessage, data)
			}
		}
		time.Sleep(disconnectDelay)
		conn.Close()
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
