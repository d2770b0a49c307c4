package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a candidate bookable interval. Slots are derived on every
// query and never persisted; the id is a deterministic function of the date
// and bounds so identical inputs always produce identical output.
type TimeSlot struct {
	ID          uuid.UUID `json:"id"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAvailable bool      `json:"isAvailable"`
}

func slotID(dateKey string, start, end time.Time) uuid.UUID {
	name := "lessonbook:slot:" + dateKey +
		":" + strconv.FormatInt(start.Unix(), 10) +
		":" + strconv.FormatInt(end.Unix(), 10)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

// GenerateDaySlots produces the offerable slots for one location and date.
//
// Within each opening period the window start advances by the location's
// slot granularity, not by the lesson duration, so consecutive candidates
// may overlap. Only full slots inside the period are emitted. A slot
// starting less than noticeMinutes after now is dropped entirely; a slot
// colliding with a booking is emitted as unavailable. Output is sorted
// ascending across all periods of the day.
//
// bookings must already be filtered to the same location and calendar date.
func GenerateDaySlots(
	day DaySchedule,
	date time.Time,
	loc *time.Location,
	granularityMinutes int,
	durationMinutes int,
	noticeMinutes int,
	now time.Time,
	bookings []Booking,
) []TimeSlot {
	if durationMinutes <= 0 {
		return nil
	}
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultSlotGranularityMinutes
	}

	periods := day.OpeningPeriods()
	if len(periods) == 0 {
		return nil
	}

	local := date.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dateKey := DateKey(date, loc)
	notice := time.Duration(noticeMinutes) * time.Minute

	out := make([]TimeSlot, 0, 16)
	seen := make(map[uuid.UUID]struct{})

	for _, p := range periods {
		for startMin := p.Start; startMin+durationMinutes <= p.End; startMin += granularityMinutes {
			start := midnight.Add(time.Duration(startMin) * time.Minute)
			end := start.Add(time.Duration(durationMinutes) * time.Minute)

			if start.Sub(now) < notice {
				continue
			}

			id := slotID(dateKey, start, end)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			available := true
			for _, b := range bookings {
				if b.Overlaps(start, end) {
					available = false
					break
				}
			}

			out = append(out, TimeSlot{
				ID:          id,
				StartTime:   start,
				EndTime:     end,
				IsAvailable: available,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
