package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BusyBlockSportName is the sentinel marking a booking as an imported
// external-calendar busy block. Busy blocks occupy slots exactly like real
// reservations but are excluded from customer-facing listings and payment.
const BusyBlockSportName = "__external_busy__"

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	SportID         string    `bun:"sport_id,notnull" json:"sportId"`
	SportName       string    `bun:"sport_name,notnull" json:"sportName"`
	LocationID      string    `bun:"location_id,notnull" json:"locationId"`
	Date            string    `bun:"date,notnull" json:"date"`
	StartTime       time.Time `bun:"start_time,notnull" json:"startTime"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"durationMinutes"`
	LessonTypeID    string    `bun:"lesson_type_id" json:"lessonTypeId,omitempty"`
	CustomerName    string    `bun:"customer_name" json:"customerName,omitempty"`
	CustomerEmail   string    `bun:"customer_email" json:"customerEmail,omitempty"`
	CustomerPhone   string    `bun:"customer_phone" json:"customerPhone,omitempty"`
	Notes           string    `bun:"notes" json:"notes,omitempty"`
	SourceCalendarID string   `bun:"source_calendar_id" json:"sourceCalendarId,omitempty"`
	ExternalEventID string    `bun:"external_event_id" json:"externalEventId,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

func (b Booking) IsBusyBlock() bool {
	return b.SportName == BusyBlockSportName
}

// Overlaps tests half-open interval overlap against [start, end): a booking
// ending exactly at start, or starting exactly at end, does not collide.
func (b Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndTime()) && end.After(b.StartTime)
}
