// Package waitlist implements the realtime patient wait queue: one
// FIFO list per clinic, mutated and observed over WebSocket messages.
package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// Message types of the wait-list hub.
const (
	MsgNewPatient    = 1
	MsgUpdatePatient = 2
	MsgNextPatient   = 3
	MsgListPatients  = 4
	MsgConnection    = 5
	MsgCreateUUID    = 6
	MsgInvalid       = 7
	MsgError         = 8
	MsgDisconnect    = 9
)

// Entry statuses.
const (
	StatusWaiting  = "waiting"
	StatusDone     = "done"
	StatusCanceled = "canceled"
)

// Entry is one patient in a clinic's wait queue.
type Entry struct {
	PatientID int64     `json:"patientId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConnectionData is the handshake payload: the session token issued by
// the auth service.
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

// NewPatientData asks for a patient to be queued.
type NewPatientData struct {
	PatientID int64 `json:"patientId"`
}

// UpdatePatientData changes a queued patient's status.
type UpdatePatientData struct {
	PatientID int64  `json:"patientId"`
	Status    string `json:"status"`
}

// ListData is the full queue of one clinic, oldest first.
type ListData struct {
	Patients []Entry `json:"patients"`
}
