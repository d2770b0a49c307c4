package domain

import (
	"sort"

	"github.com/google/uuid"
)

const (
	DefaultSlotGranularityMinutes = 60
	DefaultLessonDurationMinutes  = 60
	DefaultLessonTypeName         = "Private lesson"
)

type LessonType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SportLocation struct {
	ID                     string                 `json:"id"`
	Name                   string                 `json:"name"`
	Address                string                 `json:"address"`
	Schedule               WeeklySchedule         `json:"schedule"`
	SlotGranularityMinutes int                    `json:"slotGranularityMinutes"`
	ExternalCalendarID     string                 `json:"externalCalendarId,omitempty"`
	ScheduleExceptions     map[string]DaySchedule `json:"scheduleExceptions"`
}

type Sport struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon,omitempty"`
	Description string          `json:"description,omitempty"`
	Locations   []SportLocation `json:"locations"`
	LessonTypes []LessonType    `json:"lessonTypes"`
	Durations   []int           `json:"durations"`
}

// AppConfig is the root settings aggregate. It is persisted and replaced as
// a single document; mutations never patch individual fields in the store.
type AppConfig struct {
	HomeTitle               string   `json:"homeTitle"`
	HomeSubtitle            string   `json:"homeSubtitle"`
	MinBookingNoticeMinutes int      `json:"minBookingNoticeMinutes"`
	Sports                  []Sport  `json:"sports"`
	ImportBusyCalendarIDs   []string `json:"importBusyCalendarIds"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		HomeTitle:             "Book a lesson",
		HomeSubtitle:          "Pick a sport, a location and a time that works for you.",
		Sports:                []Sport{},
		ImportBusyCalendarIDs: []string{},
	}
}

// NewSport builds a sport with the creation defaults: one lesson type and a
// single 60-minute duration.
func NewSport(name string) Sport {
	return Sport{
		ID:        uuid.NewString(),
		Name:      name,
		Locations: []SportLocation{},
		LessonTypes: []LessonType{
			{ID: uuid.NewString(), Name: DefaultLessonTypeName},
		},
		Durations: []int{DefaultLessonDurationMinutes},
	}
}

// NewSportLocation builds a location with a fresh copy of the default weekly
// schedule and the default slot granularity.
func NewSportLocation(name, address string) SportLocation {
	return SportLocation{
		ID:                     uuid.NewString(),
		Name:                   name,
		Address:                address,
		Schedule:               DefaultWeeklySchedule(),
		SlotGranularityMinutes: DefaultSlotGranularityMinutes,
		ScheduleExceptions:     map[string]DaySchedule{},
	}
}

func (c *AppConfig) FindSport(id string) *Sport {
	for i := range c.Sports {
		if c.Sports[i].ID == id {
			return &c.Sports[i]
		}
	}
	return nil
}

func (s *Sport) FindLocation(id string) *SportLocation {
	for i := range s.Locations {
		if s.Locations[i].ID == id {
			return &s.Locations[i]
		}
	}
	return nil
}

func (s *Sport) HasLessonType(id string) bool {
	for _, lt := range s.LessonTypes {
		if lt.ID == id {
			return true
		}
	}
	return false
}

// InsertDuration adds minutes to the duration set keeping it sorted
// ascending. Duplicates are ignored. Reports whether the set changed.
func (s *Sport) InsertDuration(minutes int) bool {
	i := sort.SearchInts(s.Durations, minutes)
	if i < len(s.Durations) && s.Durations[i] == minutes {
		return false
	}
	s.Durations = append(s.Durations, 0)
	copy(s.Durations[i+1:], s.Durations[i:])
	s.Durations[i] = minutes
	return true
}

// RemoveDuration filters minutes out of the duration set. Reports whether
// the set changed.
func (s *Sport) RemoveDuration(minutes int) bool {
	out := s.Durations[:0]
	removed := false
	for _, d := range s.Durations {
		if d == minutes {
			removed = true
			continue
		}
		out = append(out, d)
	}
	s.Durations = out
	return removed
}

// Normalize back-fills invariants on a config that may have been written by
// an older schema: no nil lists, all seven weekdays present, duration sets
// sorted and deduplicated, positive slot granularity.
func (c *AppConfig) Normalize() {
	if c.Sports == nil {
		c.Sports = []Sport{}
	}
	if c.ImportBusyCalendarIDs == nil {
		c.ImportBusyCalendarIDs = []string{}
	}
	if c.MinBookingNoticeMinutes < 0 {
		c.MinBookingNoticeMinutes = 0
	}
	for i := range c.Sports {
		sp := &c.Sports[i]
		if sp.Locations == nil {
			sp.Locations = []SportLocation{}
		}
		if sp.LessonTypes == nil {
			sp.LessonTypes = []LessonType{}
		}
		if sp.Durations == nil {
			sp.Durations = []int{}
		}
		sp.Durations = normalizeDurations(sp.Durations)
		for j := range sp.Locations {
			loc := &sp.Locations[j]
			if loc.Schedule == nil {
				loc.Schedule = DefaultWeeklySchedule()
			} else {
				loc.Schedule.fillMissingDays()
			}
			if loc.ScheduleExceptions == nil {
				loc.ScheduleExceptions = map[string]DaySchedule{}
			}
			if loc.SlotGranularityMinutes <= 0 {
				loc.SlotGranularityMinutes = DefaultSlotGranularityMinutes
			}
		}
	}
}

func normalizeDurations(in []int) []int {
	out := make([]int, 0, len(in))
	seen := make(map[int]struct{}, len(in))
	for _, d := range in {
		if d <= 0 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy. Mutators transform a clone so a failed or
// abandoned operation never leaves shared state half-modified.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Sports = make([]Sport, len(c.Sports))
	for i, sp := range c.Sports {
		out.Sports[i] = sp.Clone()
	}
	out.ImportBusyCalendarIDs = append([]string(nil), c.ImportBusyCalendarIDs...)
	return out
}

func (s Sport) Clone() Sport {
	out := s
	out.Locations = make([]SportLocation, len(s.Locations))
	for i, l := range s.Locations {
		out.Locations[i] = l.Clone()
	}
	out.LessonTypes = append([]LessonType(nil), s.LessonTypes...)
	out.Durations = append([]int(nil), s.Durations...)
	return out
}

func (l SportLocation) Clone() SportLocation {
	out := l
	out.Schedule = l.Schedule.Clone()
	out.ScheduleExceptions = make(map[string]DaySchedule, len(l.ScheduleExceptions))
	for k, v := range l.ScheduleExceptions {
		out.ScheduleExceptions[k] = v.Clone()
	}
	return out
}
