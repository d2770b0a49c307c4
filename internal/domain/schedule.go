package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WeeklySchedule maps lowercase weekday names ("monday".."sunday") to the
// recurring opening hours for that day. All seven keys are always present in
// a normalized config.
type WeeklySchedule map[string]DaySchedule

// Period is one opening window within a day, clock times as "HH:MM".
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule describes the opening hours of a single day. Two shapes are in
// use: the legacy single window (Start/End set, Periods empty) and the
// current period list. OpeningPeriods resolves either to a normalized list;
// nothing downstream branches on the shape.
type DaySchedule struct {
	IsOpen               bool     `json:"isOpen"`
	Start                string   `json:"start,omitempty"`
	End                  string   `json:"end,omitempty"`
	Periods              []Period `json:"periods,omitempty"`
	AllowedLessonTypeIDs []string `json:"allowedLessonTypeIds,omitempty"`
}

// MinutePeriod is an opening window in minutes since local midnight,
// half-open [Start, End).
type MinutePeriod struct {
	Start int
	End   int
}

var weekdayKeys = [7]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

func WeekdayKey(t time.Time) string {
	return weekdayKeys[t.Weekday()]
}

// DateKey buckets an instant into its calendar date in loc, formatted
// "YYYY-MM-DD". Every date comparison in the engine (exception lookup,
// collision bucketing, "today") goes through this one zone.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// ValidateDateKey checks the "YYYY-MM-DD" shape.
func ValidateDateKey(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// OpeningPeriods normalizes the day into a list of minute periods sorted by
// start. A closed day yields nil. Windows that do not parse or have
// start >= end are skipped; mutation-time validation rejects those before
// they are written, this only keeps reads of malformed documents
// deterministic.
func (d DaySchedule) OpeningPeriods() []MinutePeriod {
	if !d.IsOpen {
		return nil
	}

	raw := d.Periods
	if len(raw) == 0 && d.Start != "" && d.End != "" {
		raw = []Period{{Start: d.Start, End: d.End}}
	}

	out := make([]MinutePeriod, 0, len(raw))
	for _, p := range raw {
		start, err := ParseClock(p.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(p.End)
		if err != nil {
			continue
		}
		if start >= end {
			continue
		}
		out = append(out, MinutePeriod{Start: start, End: end})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// AllowsLessonType reports whether the day's allow-list admits the lesson
// type. An empty list allows every type.
func (d DaySchedule) AllowsLessonType(id string) bool {
	if len(d.AllowedLessonTypeIDs) == 0 {
		return true
	}
	for _, allowed := range d.AllowedLessonTypeIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func (d DaySchedule) Clone() DaySchedule {
	out := d
	out.Periods = append([]Period(nil), d.Periods...)
	out.AllowedLessonTypeIDs = append([]string(nil), d.AllowedLessonTypeIDs...)
	return out
}

// ValidateDaySchedule is the mutation-time policy for exception writes: all
// windows must parse, each must have start < end, and windows sorted by
// start must not overlap.
func ValidateDaySchedule(d DaySchedule) error {
	if !d.IsOpen {
		return nil
	}
	periods := d.Periods
	if len(periods) == 0 {
		if d.Start == "" && d.End == "" {
			return nil
		}
		periods = []Period{{Start: d.Start, End: d.End}}
	}

	windows := make([]MinutePeriod, 0, len(periods))
	for _, p := range periods {
		start, err := ParseClock(p.Start)
		if err != nil {
			return err
		}
		end, err := ParseClock(p.End)
		if err != nil {
			return err
		}
		if start >= end {
			return fmt.Errorf("period %s-%s: start must be before end", p.Start, p.End)
		}
		windows = append(windows, MinutePeriod{Start: start, End: end})
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	for i := 1; i < len(windows); i++ {
		if windows[i].Start < windows[i-1].End {
			return fmt.Errorf("periods overlap")
		}
	}
	return nil
}

// DefaultWeeklySchedule is the template for new locations: open 09:00-18:00
// Monday through Saturday, closed Sunday.
func DefaultWeeklySchedule() WeeklySchedule {
	w := WeeklySchedule{}
	for _, key := range weekdayKeys {
		if key == "sunday" {
			w[key] = DaySchedule{IsOpen: false}
			continue
		}
		w[key] = DaySchedule{
			IsOpen:  true,
			Periods: []Period{{Start: "09:00", End: "18:00"}},
		}
	}
	return w
}

func (w WeeklySchedule) fillMissingDays() {
	for _, key := range weekdayKeys {
		if _, ok := w[key]; !ok {
			w[key] = DaySchedule{IsOpen: false}
		}
	}
}

func (w WeeklySchedule) Clone() WeeklySchedule {
	out := make(WeeklySchedule, len(w))
	for k, v := range w {
		out[k] = v.Clone()
	}
	return out
}

// ResolveDay returns the effective schedule for a calendar date. A date
// exception wins entirely over the weekly default; it is never merged, so an
// exception with IsOpen=false closes a day the weekly schedule keeps open.
// Absent entries resolve to a closed day, never an error.
func (l *SportLocation) ResolveDay(date time.Time, loc *time.Location) DaySchedule {
	if ex, ok := l.ScheduleExceptions[DateKey(date, loc)]; ok {
		return ex
	}
	if day, ok := l.Schedule[WeekdayKey(date.In(loc))]; ok {
		return day
	}
	return DaySchedule{}
}
