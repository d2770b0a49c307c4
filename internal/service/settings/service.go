// Package settings implements the configuration mutators. Every operation
// loads the current aggregate, applies a pure transform to a deep copy and
// persists the whole result; there is no partial patch. Concurrent mutators
// race at the store and the later write wins.
package settings

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	store store.SettingsStore
}

func NewService(store store.SettingsStore) *Service {
	return &Service{store: store}
}

// mutate runs the read-modify-write cycle. Transforms report whether the
// aggregate changed; unknown-id no-ops skip the write entirely so they are
// invisible to concurrent readers.
func (s *Service) mutate(ctx context.Context, transform func(cfg *domain.AppConfig) (bool, error)) error {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	cfg = cfg.Clone()
	cfg.Normalize()

	changed, err := transform(&cfg)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.store.Save(ctx, cfg)
}

func (s *Service) AddSport(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("sport name is required")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		cfg.Sports = append(cfg.Sports, domain.NewSport(name))
		return true, nil
	})
}

// SportUpdate carries the fields to merge into an existing sport; nil means
// leave unchanged.
type SportUpdate struct {
	Name        *string
	Icon        *string
	Description *string
}

func (s *Service) UpdateSport(ctx context.Context, sportID string, update SportUpdate) error {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return validationError("sport name is required")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		if update.Name != nil {
			sport.Name = strings.TrimSpace(*update.Name)
		}
		if update.Icon != nil {
			sport.Icon = *update.Icon
		}
		if update.Description != nil {
			sport.Description = *update.Description
		}
		return true, nil
	})
}

func (s *Service) RemoveSport(ctx context.Context, sportID string) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		out := cfg.Sports[:0]
		removed := false
		for _, sp := range cfg.Sports {
			if sp.ID == sportID {
				removed = true
				continue
			}
			out = append(out, sp)
		}
		cfg.Sports = out
		return removed, nil
	})
}

func (s *Service) AddSportLocation(ctx context.Context, sportID, name, address string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("location name is required")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		sport.Locations = append(sport.Locations, domain.NewSportLocation(name, strings.TrimSpace(address)))
		return true, nil
	})
}

type LocationUpdate struct {
	Name                   *string
	Address                *string
	SlotGranularityMinutes *int
	ExternalCalendarID     *string
}

func (s *Service) UpdateSportLocation(ctx context.Context, sportID, locationID string, update LocationUpdate) error {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return validationError("location name is required")
	}
	if update.SlotGranularityMinutes != nil && *update.SlotGranularityMinutes <= 0 {
		return validationError("slot granularity must be positive")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		loc := sport.FindLocation(locationID)
		if loc == nil {
			return false, nil
		}
		if update.Name != nil {
			loc.Name = strings.TrimSpace(*update.Name)
		}
		if update.Address != nil {
			loc.Address = strings.TrimSpace(*update.Address)
		}
		if update.SlotGranularityMinutes != nil {
			loc.SlotGranularityMinutes = *update.SlotGranularityMinutes
		}
		if update.ExternalCalendarID != nil {
			loc.ExternalCalendarID = *update.ExternalCalendarID
		}
		return true, nil
	})
}

func (s *Service) RemoveSportLocation(ctx context.Context, sportID, locationID string) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		out := sport.Locations[:0]
		removed := false
		for _, l := range sport.Locations {
			if l.ID == locationID {
				removed = true
				continue
			}
			out = append(out, l)
		}
		sport.Locations = out
		return removed, nil
	})
}

func (s *Service) AddSportLessonType(ctx context.Context, sportID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("lesson type name is required")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		sport.LessonTypes = append(sport.LessonTypes, domain.LessonType{ID: uuid.NewString(), Name: name})
		return true, nil
	})
}

func (s *Service) RemoveSportLessonType(ctx context.Context, sportID, lessonTypeID string) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		out := sport.LessonTypes[:0]
		removed := false
		for _, lt := range sport.LessonTypes {
			if lt.ID == lessonTypeID {
				removed = true
				continue
			}
			out = append(out, lt)
		}
		sport.LessonTypes = out
		return removed, nil
	})
}

func (s *Service) AddSportDuration(ctx context.Context, sportID string, minutes int) error {
	if minutes <= 0 {
		return validationError("duration must be positive")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		return sport.InsertDuration(minutes), nil
	})
}

func (s *Service) RemoveSportDuration(ctx context.Context, sportID string, minutes int) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		return sport.RemoveDuration(minutes), nil
	})
}

// UpdateLocationException sets the override for one date on one location,
// or deletes it when day is nil.
func (s *Service) UpdateLocationException(ctx context.Context, sportID, locationID, dateKey string, day *domain.DaySchedule) error {
	return s.UpdateMultipleLocationsExceptions(ctx, sportID, []string{locationID}, dateKey, day)
}

// UpdateMultipleLocationsExceptions applies the same set-or-delete across
// every listed location in one persisted write, so concurrent readers never
// observe a partially applied bulk edit.
func (s *Service) UpdateMultipleLocationsExceptions(ctx context.Context, sportID string, locationIDs []string, dateKey string, day *domain.DaySchedule) error {
	if err := domain.ValidateDateKey(dateKey); err != nil {
		return validationError(err.Error())
	}
	if day != nil {
		if err := domain.ValidateDaySchedule(*day); err != nil {
			return validationError(err.Error())
		}
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		sport := cfg.FindSport(sportID)
		if sport == nil {
			return false, nil
		}
		changed := false
		for _, locationID := range locationIDs {
			loc := sport.FindLocation(locationID)
			if loc == nil {
				continue
			}
			if day == nil {
				if _, ok := loc.ScheduleExceptions[dateKey]; ok {
					delete(loc.ScheduleExceptions, dateKey)
					changed = true
				}
				continue
			}
			loc.ScheduleExceptions[dateKey] = day.Clone()
			changed = true
		}
		return changed, nil
	})
}

func (s *Service) UpdateHomeConfig(ctx context.Context, title, subtitle string) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		cfg.HomeTitle = title
		cfg.HomeSubtitle = subtitle
		return true, nil
	})
}

func (s *Service) UpdateMinBookingNotice(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return validationError("minimum booking notice must not be negative")
	}
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		cfg.MinBookingNoticeMinutes = minutes
		return true, nil
	})
}

func (s *Service) UpdateImportBusyCalendars(ctx context.Context, calendarIDs []string) error {
	return s.mutate(ctx, func(cfg *domain.AppConfig) (bool, error) {
		out := make([]string, 0, len(calendarIDs))
		for _, id := range calendarIDs {
			id = strings.TrimSpace(id)
			if id != "" {
				out = append(out, id)
			}
		}
		cfg.ImportBusyCalendarIDs = out
		return true, nil
	})
}
