package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicplus/api/internal/domain/clinic"
)

// HolidayChecker reports whether a stored national/state holiday falls
// on the given date.
type HolidayChecker interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// Service validates and persists calendar events.
type Service struct {
	events   Repository
	clinics  clinic.Repository
	holidays HolidayChecker
	now      func() time.Time
}

// NewService wires the event repository with the lookups validation
// needs.
func NewService(events Repository, clinics clinic.Repository, holidays HolidayChecker) *Service {
	return &Service{
		events:   events,
		clinics:  clinics,
		holidays: holidays,
		now:      time.Now,
	}
}

func (s *Service) validate(ctx context.Context, e *Event) error {
	if !e.Date.After(s.now()) {
		return fmt.Errorf("event date must be in the future")
	}
	if e.IsOff && e.OffReason == "" {
		return fmt.Errorf("off events require a reason")
	}
	if !e.IsOff && e.PatientID == 0 {
		return fmt.Errorf("event requires a patient")
	}

	if _, err := s.clinics.GetByID(ctx, e.ClinicID); err != nil {
		if errors.Is(err, clinic.ErrNotFound) {
			return fmt.Errorf("clinic %d not found", e.ClinicID)
		}
		return fmt.Errorf("looking up clinic: %w", err)
	}

	desk, err := s.clinics.GetDesk(ctx, e.DeskID)
	if err != nil {
		if errors.Is(err, clinic.ErrNotFound) {
			return fmt.Errorf("desk %d not found", e.DeskID)
		}
		return fmt.Errorf("looking up desk: %w", err)
	}
	if desk.ClinicID != e.ClinicID {
		return fmt.Errorf("desk %d does not belong to clinic %d", e.DeskID, e.ClinicID)
	}
	if !desk.Vacancy {
		return fmt.Errorf("desk %d has no vacancy", e.DeskID)
	}

	// Off events may block a holiday; patient events may not land on one.
	if !e.IsOff {
		holiday, err := s.holidays.IsHoliday(ctx, e.Date)
		if err != nil {
			return fmt.Errorf("checking holidays: %w", err)
		}
		if holiday {
			return fmt.Errorf("events cannot be scheduled on a holiday")
		}
	}
	return nil
}

// AddEvent validates and persists a new event.
func (s *Service) AddEvent(ctx context.Context, e *Event) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	return s.events.Create(ctx, e)
}

// EditEvent validates and saves changes to an existing event.
func (s *Service) EditEvent(ctx context.Context, e *Event) error {
	if e.ID == 0 {
		return fmt.Errorf("event id is required")
	}
	if _, err := s.events.GetByID(ctx, e.ClinicID, e.ID); err != nil {
		return err
	}
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	return s.events.Update(ctx, e)
}

// RemoveEvent soft deletes an event and returns its last state.
func (s *Service) RemoveEvent(ctx context.Context, clinicID, id int64) (*Event, error) {
	return s.events.SoftDelete(ctx, clinicID, id)
}

// MonthCalendar lists the events of the calendar month containing ref.
func (s *Service) MonthCalendar(ctx context.Context, clinicID int64, ref time.Time) ([]Event, error) {
	from := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return s.events.ListBetween(ctx, clinicID, from, from.AddDate(0, 1, 0))
}

// WeekCalendar lists the events of the Monday-to-Sunday week
// containing ref.
func (s *Service) WeekCalendar(ctx context.Context, clinicID int64, ref time.Time) ([]Event, error) {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	offset := (int(day.Weekday()) + 6) % 7
	from := day.AddDate(0, 0, -offset)
	return s.events.ListBetween(ctx, clinicID, from, from.AddDate(0, 0, 7))
}

// DayCalendar lists the events of the day containing ref.
func (s *Service) DayCalendar(ctx context.Context, clinicID int64, ref time.Time) ([]Event, error) {
	from := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return s.events.ListBetween(ctx, clinicID, from, from.AddDate(0, 0, 1))
}
