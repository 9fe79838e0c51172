package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicplus/api/internal/platform/auth"
	"github.com/clinicplus/api/internal/platform/ws"
)

// disconnectDelay gives the peer time to read the error frame before
// the socket is closed on it.
const disconnectDelay = 100 * time.Millisecond

// Manager holds the in-memory wait queues and applies inbound hub
// messages to them. It runs behind a single-consumer dispatcher, so
// the queues need no locking.
type Manager struct {
	hub       *ws.Hub
	validator auth.TokenValidator
	lists     map[int64][]Entry
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a manager with empty queues.
func NewManager(hub *ws.Hub, validator auth.TokenValidator, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:       hub,
		validator: validator,
		lists:     make(map[int64][]Entry),
		logger:    logger.With().Str("component", "waitlist").Logger(),
		now:       time.Now,
	}
}

// Process applies one inbound message. Every message except the
// connection handshake requires a completed handshake first.
func (m *Manager) Process(ctx context.Context, in ws.Inbound) error {
	if in.Msg.Type == MsgConnection {
		return m.handleConnection(ctx, in)
	}
	if !in.Client.Authenticated() {
		return fmt.Errorf("not authenticated")
	}

	switch in.Msg.Type {
	case MsgNewPatient:
		return m.handleNewPatient(in)
	case MsgUpdatePatient:
		return m.handleUpdatePatient(in)
	case MsgNextPatient:
		return m.handleNextPatient(in)
	case MsgListPatients:
		return m.pushList(in.Client)
	case MsgDisconnect:
		m.hub.Unregister(in.Client)
		return nil
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
	var data ConnectionData
	if err := json.Unmarshal(in.Msg.Data, &data); err != nil || data.Token == "" {
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
	return m.pushList(in.Client)
}

// reject sends a typed error, then drops the client after a short
// delay so the error frame makes it onto the wire first.
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

func (m *Manager) handleNewPatient(in ws.Inbound) error {
	var data NewPatientData
	if err := json.Unmarshal(in.Msg.Data, &data); err != nil || data.PatientID == 0 {
		return m.pushInvalid(in.Client, "invalid patient payload")
	}

	clinicID := in.Client.ClinicID
	for _, e := range m.lists[clinicID] {
		if e.PatientID == data.PatientID {
			return fmt.Errorf("patient %d is already in the wait list", data.PatientID)
		}
	}

	entry := Entry{PatientID: data.PatientID, Status: StatusWaiting, CreatedAt: m.now()}
	m.lists[clinicID] = append(m.lists[clinicID], entry)

	msg, err := ws.NewMessage(MsgNewPatient, clinicID, entry)
	if err != nil {
		return err
	}
	m.hub.Broadcast(clinicID, msg)
	return nil
}

func (m *Manager) handleUpdatePatient(in ws.Inbound) error {
	var data UpdatePatientData
	if err := json.Unmarshal(in.Msg.Data, &data); err != nil || data.PatientID == 0 {
		return m.pushInvalid(in.Client, "invalid patient payload")
	}
	switch data.Status {
	case StatusWaiting, StatusDone, StatusCanceled:
	default:
		return m.pushInvalid(in.Client, fmt.Sprintf("invalid status %q", data.Status))
	}

	clinicID := in.Client.ClinicID
	list := m.lists[clinicID]
	idx := -1
	for i, e := range list {
		if e.PatientID == data.PatientID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("patient %d is not in the wait list", data.PatientID)
	}

	entry := list[idx]
	entry.Status = data.Status
	if data.Status == StatusDone || data.Status == StatusCanceled {
		m.lists[clinicID] = append(list[:idx], list[idx+1:]...)
	} else {
		list[idx] = entry
	}

	msg, err := ws.NewMessage(MsgUpdatePatient, clinicID, entry)
	if err != nil {
		return err
	}
	m.hub.Broadcast(clinicID, msg)
	return nil
}

func (m *Manager) handleNextPatient(in ws.Inbound) error {
	clinicID := in.Client.ClinicID
	list := m.lists[clinicID]
	if len(list) == 0 {
		return fmt.Errorf("no patients in the wait list")
	}

	entry := list[0]
	entry.Status = StatusDone
	m.lists[clinicID] = list[1:]

	msg, err := ws.NewMessage(MsgNextPatient, clinicID, entry)
	if err != nil {
		return err
	}
	m.hub.Broadcast(clinicID, msg)
	return nil
}

// pushList sends the full queue to one client only.
func (m *Manager) pushList(c *ws.Client) error {
	list := m.lists[c.ClinicID]
	patients := make([]Entry, len(list))
	copy(patients, list)

	msg, err := ws.NewMessage(MsgListPatients, c.ClinicID, ListData{Patients: patients})
	if err != nil {
		return err
	}
	c.Push(msg)
	return nil
}
