package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicplus/api/internal/platform/auth"
	"github.com/clinicplus/api/internal/platform/ws"
)

const disconnectDelay = 100 * time.Millisecond

// Manager applies inbound scheduler hub messages: handshake, event
// mutations (persisted then broadcast) and calendar queries (replied
// to the requester only).
type Manager struct {
	hub       *ws.Hub
	validator auth.TokenValidator
	svc       *Service
	logger    zerolog.Logger
}

// NewManager wires the hub to the event service.
func NewManager(hub *ws.Hub, validator auth.TokenValidator, svc *Service, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:       hub,
		validator: validator,
		svc:       svc,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Process applies one inbound message. Everything except the
// connection handshake requires a completed handshake first.
func (m *Manager) Process(ctx context.Context, in ws.Inbound) error {
	if in.Msg.Type == MsgConnection {
		return m.handleConnection(ctx, in)
	}
	if !in.Client.Authenticated() {
		return fmt.Errorf("not authenticated")
	}

	switch in.Msg.Type {
	case MsgAddEvent:
		return m.handleAddEvent(ctx, in)
	case MsgEditEvent:
		return m.handleEditEvent(ctx, in)
	case MsgRemoveEvent:
		return m.handleRemoveEvent(ctx, in)
	case MsgMonthEvents:
		return m.handleCalendar(ctx, in, MsgMonthEvents, m.svc.MonthCalendar)
	case MsgWeekEvents:
		return m.handleCalendar(ctx, in, MsgWeekEvents, m.svc.WeekCalendar)
	case MsgDayEvents:
		return m.handleCalendar(ctx, in, MsgDayEvents, m.svc.DayCalendar)
	default:
		return m.pushInvalid(in.Client, "invalid message type")
	}
}

// pushInvalid answers a malformed payload or unknown message type.
// Processing failures go through the dispatcher as typed errors
// instead.
func (m *Manager) pushInvalid(c *ws.Client, reason string) error {
	msg, err := ws.NewMessage(MsgInvalid, c.ClinicID, ws.ErrorData{Error: reason})
	if err != nil {
		return err
	}
	c.Push(msg)
	return nil
}

func (m *Manager) handleConnection(ctx context.Context, in ws.Inbound) error {
	data, err := decode[ConnectionData](in.Msg.Data)
	if err != nil || data.Token == "" {
		return m.reject(in.Client, "missing token")
	}

	if err := m.validator.CheckToken(ctx, data.Token); err != nil {
		return m.reject(in.Client, "invalid token")
	}
	user, err := m.validator.UserByToken(ctx, data.Token)
	if err != nil {
		return m.reject(in.Client, "invalid token")
	}
	if !user.Active {
		return m.reject(in.Client, "user is inactive")
	}
	if !user.Superuser && user.ClinicID != in.Client.ClinicID {
		return m.reject(in.Client, "user does not belong to this clinic")
	}

	in.Client.Bind(user.ID)
	m.logger.Info().
		Int64("clinic_id", in.Client.ClinicID).
		Int64("user_id", user.ID).
		Str("client_id", in.Client.ID.String()).
		Msg("client authenticated")

	ack, err := ws.NewMessage(MsgConnection, in.Client.ClinicID, ConnectedData{UserID: user.ID, UserName: user.Name})
	if err != nil {
		return err
	}
	in.Client.Push(ack)
	return nil
}

func (m *Manager) reject(c *ws.Client, reason string) error {
	msg, err := ws.NewMessage(MsgError, c.ClinicID, ws.ErrorData{Error: reason})
	if err != nil {
		return err
	}
	c.Push(msg)
	m.logger.Warn().
		Int64("clinic_id", c.ClinicID).
		Str("client_id", c.ID.String()).
		Str("reason", reason).
		Msg("handshake rejected")
	go func() {
		time.Sleep(disconnectDelay)
		m.hub.Unregister(c)
	}()
	return nil
}

func (m *Manager) handleAddEvent(ctx context.Context, in ws.Inbound) error {
	data, err := decode[EventData](in.Msg.Data)
	if err != nil {
		return m.pushInvalid(in.Client, "invalid event payload")
	}
	event, err := data.toEvent(in.Client.ClinicID, in.Client.UserID())
	if err != nil {
		return m.pushInvalid(in.Client, "invalid event date")
	}
	if err := m.svc.AddEvent(ctx, event); err != nil {
		return err
	}
	return m.broadcast(MsgAddEvent, in.Client.ClinicID, event)
}

func (m *Manager) handleEditEvent(ctx context.Context, in ws.Inbound) error {
	data, err := decode[EventData](in.Msg.Data)
	if err != nil {
		return m.pushInvalid(in.Client, "invalid event payload")
	}
	event, err := data.toEvent(in.Client.ClinicID, in.Client.UserID())
	if err != nil {
		return m.pushInvalid(in.Client, "invalid event date")
	}
	if err := m.svc.EditEvent(ctx, event); err != nil {
		return err
	}
	return m.broadcast(MsgEditEvent, in.Client.ClinicID, event)
}

func (m *Manager) handleRemoveEvent(ctx context.Context, in ws.Inbound) error {
	data, err := decode[RemoveEventData](in.Msg.Data)
	if err != nil || data.EventID == 0 {
		return m.pushInvalid(in.Client, "invalid event payload")
	}
	event, err := m.svc.RemoveEvent(ctx, in.Client.ClinicID, data.EventID)
	if err != nil {
		return err
	}
	return m.broadcast(MsgRemoveEvent, in.Client.ClinicID, event)
}

type calendarFn func(ctx context.Context, clinicID int64, ref time.Time) ([]Event, error)

func (m *Manager) handleCalendar(ctx context.Context, in ws.Inbound, replyType int, list calendarFn) error {
	data, err := decode[CalendarQueryData](in.Msg.Data)
	if err != nil {
		return m.pushInvalid(in.Client, "invalid calendar payload")
	}
	ref, err := parseWireDate(data.Date)
	if err != nil {
		return m.pushInvalid(in.Client, "invalid calendar date")
	}
	events, err := list(ctx, in.Client.ClinicID, ref)
	if err != nil {
		return err
	}
	if events == nil {
		events = []Event{}
	}
	msg, err := ws.NewMessage(replyType, in.Client.ClinicID, CalendarData{Events: events})
	if err != nil {
		return err
	}
	in.Client.Push(msg)
	return nil
}

func (m *Manager) broadcast(msgType int, clinicID int64, event *Event) error {
	msg, err := ws.NewMessage(msgType, clinicID, event)
	if err != nil {
		return err
	}
	m.hub.Broadcast(clinicID, msg)
	return nil
}
