// Package scheduling is the query side of the availability engine. All
// reads go against the in-process snapshots, so results are as fresh as the
// last subscription delivery; nothing here blocks or mutates state.
package scheduling

import (
	"time"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/state"
)

type Service struct {
	state *state.AppState
	loc   *time.Location
	now   func() time.Time
}

// NewService builds the query service. loc is the single authoritative zone
// for date bucketing: exception lookup, collision matching and the
// minimum-notice clock all use it.
func NewService(st *state.AppState, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		state: st,
		loc:   loc,
		now:   time.Now,
	}
}

type SlotQuery struct {
	Date            time.Time
	DurationMinutes int
	SportID         string
	LocationID      string
	LessonTypeID    string
}

// GenerateSlots derives the offerable slots for a query. Unknown sport or
// location ids, a closed day and a lesson type excluded by the day's
// allow-list all yield an empty sequence, never an error.
func (s *Service) GenerateSlots(q SlotQuery) []domain.TimeSlot {
	cfg := s.state.Config()

	sport := cfg.FindSport(q.SportID)
	if sport == nil {
		return []domain.TimeSlot{}
	}
	location := sport.FindLocation(q.LocationID)
	if location == nil {
		return []domain.TimeSlot{}
	}

	day := location.ResolveDay(q.Date, s.loc)
	if !day.IsOpen {
		return []domain.TimeSlot{}
	}
	if q.LessonTypeID != "" && !day.AllowsLessonType(q.LessonTypeID) {
		return []domain.TimeSlot{}
	}

	bookings := s.state.BookingsOn(q.LocationID, domain.DateKey(q.Date, s.loc))

	slots := domain.GenerateDaySlots(
		day,
		q.Date,
		s.loc,
		location.SlotGranularityMinutes,
		q.DurationMinutes,
		cfg.MinBookingNoticeMinutes,
		s.now(),
		bookings,
	)
	if slots == nil {
		return []domain.TimeSlot{}
	}
	return slots
}

// AggregatedExceptions projects every location's future-or-today exceptions
// for a sport into a date -> location -> schedule view. Unknown sport ids
// yield an empty map.
func (s *Service) AggregatedExceptions(sportID string) map[string]map[string]domain.DaySchedule {
	cfg := s.state.Config()

	sport := cfg.FindSport(sportID)
	if sport == nil {
		return map[string]map[string]domain.DaySchedule{}
	}
	return domain.AggregateExceptions(*sport, domain.DateKey(s.now(), s.loc))
}
