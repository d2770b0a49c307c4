package store

import (
	"context"

	"github.com/google/uuid"

	"lessonbook/backend/internal/domain"
)

// BookingStore is the durable booking collection plus its change feed.
// List and every subscription delivery carry the complete collection
// ordered by start time ascending; partial or paginated delivery is not
// supported, the slot generator needs every booking relevant to a query in
// the snapshot.
type BookingStore interface {
	List(ctx context.Context) ([]domain.Booking, error)
	Create(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	Update(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ReplaceBusyBlocks swaps all imported busy blocks of one source
	// calendar for the given list in a single transaction.
	ReplaceBusyBlocks(ctx context.Context, calendarID string, blocks []domain.Booking) error

	Subscribe(ctx context.Context, deliver func([]domain.Booking)) (Unsubscribe, error)
}
