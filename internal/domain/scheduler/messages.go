package scheduler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message types of the scheduler hub.
const (
	MsgConnection  = 1
	MsgCreateUUID  = 2
	MsgAddEvent    = 3
	MsgEditEvent   = 4
	MsgRemoveEvent = 5
	MsgMonthEvents = 6
	MsgWeekEvents  = 7
	MsgDayEvents   = 8
	MsgInvalid     = 9
	MsgError       = 10
)

// ConnectionData is the handshake payload.
type ConnectionData struct {
	Token string `json:"token"`
}

// ConnectedData acknowledges a completed handshake.
type ConnectedData struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
}

// CreateUUIDData carries the connection UUID handed out right after
// the upgrade.
type CreateUUIDData struct {
	UUID uuid.UUID `json:"uuid"`
}

// EventData carries an event over the wire for add and edit requests.
// The wire date is `YYYY-MM-DDTHH:MM` friendly: RFC 3339.
type EventData struct {
	ID          int64  `json:"id,omitempty"`
	PatientID   int64  `json:"patientId,omitempty"`
	DeskID      int64  `json:"deskId"`
	Date        string `json:"date"`
	Description string `json:"description"`
	IsReturn    bool   `json:"isReturn"`
	IsOff       bool   `json:"isOff"`
	OffReason   string `json:"offReason,omitempty"`
}

// RemoveEventData names the event to soft delete.
type RemoveEventData struct {
	EventID int64 `json:"eventId"`
}

// CalendarQueryData selects the reference date of a calendar query.
type CalendarQueryData struct {
	Date string `json:"date"`
}

// CalendarData is the reply to a calendar query.
type CalendarData struct {
	Events []Event `json:"events"`
}

func parseWireDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// toEvent turns the wire payload into a domain event bound to the
// sending client's clinic and user.
func (d EventData) toEvent(clinicID, userID int64) (*Event, error) {
	date, err := parseWireDate(d.Date)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:          d.ID,
		ClinicID:    clinicID,
		PatientID:   d.PatientID,
		UserID:      userID,
		DeskID:      d.DeskID,
		Date:        date,
		Description: d.Description,
		IsReturn:    d.IsReturn,
		IsOff:       d.IsOff,
		OffReason:   d.OffReason,
	}, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
