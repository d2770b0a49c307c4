// Package state owns the in-process snapshots of settings and bookings.
// Snapshots are written only by the store subscription deliveries and read
// by the query services; availability is as fresh as the last delivered
// snapshot, and a caller that just wrote a booking must not expect the next
// query to reflect it before the feed does.
package state

import (
	"sync"

	"lessonbook/backend/internal/domain"
)

type AppState struct {
	mu       sync.RWMutex
	config   domain.AppConfig
	bookings []domain.Booking
}

func NewAppState() *AppState {
	return &AppState{config: domain.DefaultAppConfig()}
}

// ApplyConfigSnapshot replaces the settings snapshot. The snapshot is
// normalized so readers never see nil lists or partial weeks from older
// documents.
func (s *AppState) ApplyConfigSnapshot(cfg domain.AppConfig) {
	cfg = cfg.Clone()
	cfg.Normalize()

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// ApplyBookingsSnapshot replaces the booking snapshot with the full list
// delivered by the store.
func (s *AppState) ApplyBookingsSnapshot(bookings []domain.Booking) {
	copied := append([]domain.Booking(nil), bookings...)

	s.mu.Lock()
	s.bookings = copied
	s.mu.Unlock()
}

func (s *AppState) Config() domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

func (s *AppState) Bookings() []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Booking(nil), s.bookings...)
}

// BookingsOn returns the cached bookings for one location and calendar date.
func (s *AppState) BookingsOn(locationID, dateKey string) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range s.bookings {
		if b.LocationID == locationID && b.Date == dateKey {
			out = append(out, b)
		}
	}
	return out
}
