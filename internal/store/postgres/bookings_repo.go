package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/feed"
	"lessonbook/backend/internal/store"
)

type BookingRepo struct {
	db       *bun.DB
	notifier *feed.Notifier
	log      *slog.Logger
}

func NewBookingRepo(db *bun.DB, notifier *feed.Notifier, log *slog.Logger) *BookingRepo {
	if log == nil {
		log = slog.Default()
	}
	return &BookingRepo{
		db:       db,
		notifier: notifier,
		log:      log.With(slog.String("component", "postgres.bookings")),
	}
}

func (r *BookingRepo) List(ctx context.Context) ([]domain.Booking, error) {
	rows := make([]domain.Booking, 0, 64)
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) Create(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, err
	}
	if err := r.notifier.Publish(feed.SubjectBookingsChanged); err != nil {
		return domain.Booking{}, err
	}
	return m, nil
}

func (r *BookingRepo) Update(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	res, err := r.db.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	if err := r.notifier.Publish(feed.SubjectBookingsChanged); err != nil {
		return domain.Booking{}, err
	}
	return m, nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return r.notifier.Publish(feed.SubjectBookingsChanged)
}

// ReplaceBusyBlocks swaps every imported block of one source calendar for
// the given list in a single transaction, so readers never observe a
// half-imported calendar. One notification covers the whole swap.
func (r *BookingRepo) ReplaceBusyBlocks(ctx context.Context, calendarID string, blocks []domain.Booking) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*domain.Booking)(nil)).
			Where("sport_name = ?", domain.BusyBlockSportName).
			Where("source_calendar_id = ?", calendarID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		rows := make([]domain.Booking, len(blocks))
		copy(rows, blocks)
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return r.notifier.Publish(feed.SubjectBookingsChanged)
}

// Subscribe delivers the full ordered collection immediately, then reloads
// and redelivers after every change notification.
func (r *BookingRepo) Subscribe(ctx context.Context, deliver func([]domain.Booking)) (store.Unsubscribe, error) {
	bookings, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	deliver(bookings)

	unsub, err := r.notifier.Subscribe(feed.SubjectBookingsChanged, func() {
		bookings, err := r.List(context.Background())
		if err != nil {
			r.log.Error("bookings reload failed", slog.Any("err", err))
			return
		}
		deliver(bookings)
	})
	if err != nil {
		return nil, err
	}
	return store.Unsubscribe(unsub), nil
}
