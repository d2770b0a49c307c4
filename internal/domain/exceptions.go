package domain

// AggregateExceptions projects every location's date exceptions for a sport
// into one date -> location -> schedule view for administrative display.
// Dates strictly before todayKey are excluded; equal dates from different
// locations share the same date key. The sport is not modified.
func AggregateExceptions(sport Sport, todayKey string) map[string]map[string]DaySchedule {
	out := make(map[string]map[string]DaySchedule)
	for _, l := range sport.Locations {
		for dateKey, day := range l.ScheduleExceptions {
			if dateKey < todayKey {
				continue
			}
			byLocation, ok := out[dateKey]
			if !ok {
				byLocation = make(map[string]DaySchedule)
				out[dateKey] = byLocation
			}
			byLocation[l.ID] = day.Clone()
		}
	}
	return out
}
