package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/state"
)

type fakeSource struct {
	events map[string][]Event
	errs   map[string]error
	calls  []string
}

func (f *fakeSource) BusyEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]Event, error) {
	f.calls = append(f.calls, calendarID)
	if err := f.errs[calendarID]; err != nil {
		return nil, err
	}
	return f.events[calendarID], nil
}

type fakeBusyWriter struct {
	replaced map[string][]domain.Booking
	err      error
}

func (f *fakeBusyWriter) ReplaceBusyBlocks(ctx context.Context, calendarID string, blocks []domain.Booking) error {
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.Booking)
	}
	f.replaced[calendarID] = blocks
	return nil
}

func importerState(t *testing.T, importIDs ...string) *state.AppState {
	t.Helper()
	cfg := domain.DefaultAppConfig()
	cfg.Sports = []domain.Sport{
		{
			ID:   "s1",
			Name: "Tennis",
			Locations: []domain.SportLocation{
				{ID: "l1", Name: "Main court", ExternalCalendarID: "cal1"},
				{ID: "l2", Name: "Annex", ExternalCalendarID: "cal2"},
				{ID: "l3", Name: "No calendar"},
			},
		},
	}
	cfg.ImportBusyCalendarIDs = importIDs

	st := state.NewAppState()
	st.ApplyConfigSnapshot(cfg)
	return st
}

func TestImportOnce_WritesSentinelBookings(t *testing.T) {
	st := importerState(t, "cal1")
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

	source := &fakeSource{events: map[string][]Event{
		"cal1": {
			{ID: "ev1", StartTime: start, EndTime: start.Add(90 * time.Minute)},
			{ID: "ev2", StartTime: start, EndTime: start}, // zero length, skipped
		},
	}}
	writer := &fakeBusyWriter{}

	imp := NewImporter(st, source, writer, time.UTC, nil)
	if err := imp.ImportOnce(context.Background()); err != nil {
		t.Fatalf("ImportOnce error: %v", err)
	}

	blocks := writer.replaced["cal1"]
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.SportName != domain.BusyBlockSportName || !b.IsBusyBlock() {
		t.Fatalf("block not marked as busy: %+v", b)
	}
	if b.LocationID != "l1" || b.SourceCalendarID != "cal1" || b.ExternalEventID != "ev1" {
		t.Fatalf("block provenance wrong: %+v", b)
	}
	if b.Date != "2026-01-05" || b.DurationMinutes != 90 {
		t.Fatalf("block span wrong: %+v", b)
	}
}

func TestImportOnce_OnlyConfiguredCalendars(t *testing.T) {
	// cal2 exists on a location but is not in the import list.
	st := importerState(t, "cal1")
	source := &fakeSource{}
	writer := &fakeBusyWriter{}

	imp := NewImporter(st, source, writer, time.UTC, nil)
	if err := imp.ImportOnce(context.Background()); err != nil {
		t.Fatalf("ImportOnce error: %v", err)
	}
	if len(source.calls) != 1 || source.calls[0] != "cal1" {
		t.Fatalf("fetched calendars = %v, want only cal1", source.calls)
	}
}

func TestImportOnce_EmptyImportListIsNoOp(t *testing.T) {
	st := importerState(t)
	source := &fakeSource{}
	writer := &fakeBusyWriter{}

	imp := NewImporter(st, source, writer, time.UTC, nil)
	if err := imp.ImportOnce(context.Background()); err != nil {
		t.Fatalf("ImportOnce error: %v", err)
	}
	if len(source.calls) != 0 {
		t.Fatalf("no-op import still fetched: %v", source.calls)
	}
}

func TestImportOnce_OneFailureDoesNotStopOthers(t *testing.T) {
	st := importerState(t, "cal1", "cal2")
	boom := errors.New("bridge unreachable")
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	source := &fakeSource{
		errs: map[string]error{"cal1": boom},
		events: map[string][]Event{
			"cal2": {{ID: "ev1", StartTime: start, EndTime: start.Add(time.Hour)}},
		},
	}
	writer := &fakeBusyWriter{}

	imp := NewImporter(st, source, writer, time.UTC, nil)
	err := imp.ImportOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped bridge error", err)
	}
	if len(writer.replaced["cal2"]) != 1 {
		t.Fatalf("healthy calendar skipped after failure: %+v", writer.replaced)
	}
	if _, ok := writer.replaced["cal1"]; ok {
		t.Fatalf("failed calendar still wrote blocks")
	}
}

func TestImportOnce_EmptyCalendarClearsBlocks(t *testing.T) {
	st := importerState(t, "cal1")
	source := &fakeSource{events: map[string][]Event{"cal1": nil}}
	writer := &fakeBusyWriter{}

	imp := NewImporter(st, source, writer, time.UTC, nil)
	if err := imp.ImportOnce(context.Background()); err != nil {
		t.Fatalf("ImportOnce error: %v", err)
	}

	blocks, ok := writer.replaced["cal1"]
	if !ok {
		t.Fatalf("empty calendar skipped the replace; stale blocks would survive")
	}
	if len(blocks) != 0 {
		t.Fatalf("len(blocks) = %d, want 0", len(blocks))
	}
}
