// Package scheduler persists clinic calendar events and mutates them
// over the scheduler WebSocket hub.
package scheduler

import "time"

// Event is one calendar slot of a clinic. An "off" event blocks the
// slot (lunch, meeting, absence) instead of holding a patient.
type Event struct {
	ID          int64      `json:"id"`
	ClinicID    int64      `json:"clinicId"`
	PatientID   int64      `json:"patientId,omitempty"`
	UserID      int64      `json:"userId"`
	DeskID      int64      `json:"deskId"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	IsReturn    bool       `json:"isReturn"`
	IsOff       bool       `json:"isOff"`
	OffReason   string     `json:"offReason,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-"`
}
