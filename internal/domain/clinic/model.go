package clinic

import "time"

// Clinic is the tenant boundary. Each clinic is reachable under its own
// subdomain and owns its wait list, scheduler events and desks.
type Clinic struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Desk is a consulting room / service desk inside a clinic. Vacancy gates
// whether scheduler events may be booked onto it.
type Desk struct {
	ID        int64     `json:"id"`
	ClinicID  int64     `json:"clinicId"`
	Name      string    `json:"name"`
	Vacancy   bool      `json:"vacancy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
