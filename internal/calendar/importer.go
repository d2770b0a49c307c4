// Package calendar imports external-calendar busy events as sentinel
// bookings so externally blocked time occupies slots like any reservation.
// The importer is driven by a periodic timer owned by the caller; it does
// not retry on its own.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/state"
)

// Event is one busy interval from an external calendar.
type Event struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Source lists busy events for one calendar id inside a window.
type Source interface {
	BusyEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]Event, error)
}

// BusyBlockWriter swaps all busy blocks of one source calendar atomically.
type BusyBlockWriter interface {
	ReplaceBusyBlocks(ctx context.Context, calendarID string, blocks []domain.Booking) error
}

type Importer struct {
	state     *state.AppState
	source    Source
	store     BusyBlockWriter
	loc       *time.Location
	log       *slog.Logger
	lookahead time.Duration
	now       func() time.Time
}

const DefaultLookahead = 60 * 24 * time.Hour

func NewImporter(st *state.AppState, source Source, store BusyBlockWriter, loc *time.Location, log *slog.Logger) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		state:     st,
		source:    source,
		store:     store,
		loc:       loc,
		log:       log.With(slog.String("component", "calendar.importer")),
		lookahead: DefaultLookahead,
		now:       time.Now,
	}
}

// ImportOnce refreshes busy blocks for every location whose external
// calendar is in the configured import list. Failures on one calendar do
// not stop the others; all errors are joined.
func (i *Importer) ImportOnce(ctx context.Context) error {
	cfg := i.state.Config()

	imported := make(map[string]struct{}, len(cfg.ImportBusyCalendarIDs))
	for _, id := range cfg.ImportBusyCalendarIDs {
		imported[id] = struct{}{}
	}
	if len(imported) == 0 {
		return nil
	}

	windowStart := i.now()
	windowEnd := windowStart.Add(i.lookahead)

	var errs []error
	for _, sport := range cfg.Sports {
		for _, location := range sport.Locations {
			calendarID := location.ExternalCalendarID
			if calendarID == "" {
				continue
			}
			if _, ok := imported[calendarID]; !ok {
				continue
			}

			events, err := i.source.BusyEvents(ctx, calendarID, windowStart, windowEnd)
			if err != nil {
				errs = append(errs, fmt.Errorf("calendar %s: %w", calendarID, err))
				continue
			}

			blocks := make([]domain.Booking, 0, len(events))
			for _, ev := range events {
				if !ev.EndTime.After(ev.StartTime) {
					continue
				}
				blocks = append(blocks, domain.Booking{
					SportID:          sport.ID,
					SportName:        domain.BusyBlockSportName,
					LocationID:       location.ID,
					Date:             domain.DateKey(ev.StartTime, i.loc),
					StartTime:        ev.StartTime,
					DurationMinutes:  int(ev.EndTime.Sub(ev.StartTime) / time.Minute),
					SourceCalendarID: calendarID,
					ExternalEventID:  ev.ID,
				})
			}

			if err := i.store.ReplaceBusyBlocks(ctx, calendarID, blocks); err != nil {
				errs = append(errs, fmt.Errorf("calendar %s: %w", calendarID, err))
				continue
			}
			i.log.Info("busy blocks imported",
				slog.String("calendar_id", calendarID),
				slog.String("location_id", location.ID),
				slog.Int("blocks", len(blocks)),
			)
		}
	}
	return errors.Join(errs...)
}

// Run imports on a fixed interval until ctx is cancelled.
func (i *Importer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.ImportOnce(ctx); err != nil {
				i.log.Warn("busy import failed", slog.Any("err", err))
			}
		}
	}
}
