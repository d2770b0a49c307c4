// Package http exposes the availability engine and configuration mutators
// as a JSON API. Mutations are fire-and-forget towards the caches: a 202
// means the write was persisted, the read side catches up when the change
// feed delivers.
package http

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lessonbook/backend/internal/service/scheduling"
	"lessonbook/backend/internal/service/settings"
	"lessonbook/backend/internal/state"
	"lessonbook/backend/internal/store"
)

type Server struct {
	scheduling *scheduling.Service
	settings   *settings.Service
	bookings   store.BookingStore
	state      *state.AppState
	loc        *time.Location
	validate   *validator.Validate
	log        *slog.Logger
}

func NewServer(
	schedulingSvc *scheduling.Service,
	settingsSvc *settings.Service,
	bookings store.BookingStore,
	st *state.AppState,
	loc *time.Location,
	log *slog.Logger,
) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		scheduling: schedulingSvc,
		settings:   settingsSvc,
		bookings:   bookings,
		state:      st,
		loc:        loc,
		validate:   validator.New(),
		log:        log.With(slog.String("component", "http")),
	}
}

func (s *Server) Register(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "lessonbook-server"})
	})

	v1 := app.Group("/v1")

	v1.Get("/config", s.GetConfig)
	v1.Get("/slots", s.GetSlots)
	v1.Get("/sports/:sportId/exceptions", s.GetAggregatedExceptions)

	v1.Post("/sports", s.AddSport)
	v1.Patch("/sports/:sportId", s.UpdateSport)
	v1.Delete("/sports/:sportId", s.RemoveSport)

	v1.Post("/sports/:sportId/locations", s.AddLocation)
	v1.Patch("/sports/:sportId/locations/:locationId", s.UpdateLocation)
	v1.Delete("/sports/:sportId/locations/:locationId", s.RemoveLocation)

	v1.Post("/sports/:sportId/lesson-types", s.AddLessonType)
	v1.Delete("/sports/:sportId/lesson-types/:lessonTypeId", s.RemoveLessonType)

	v1.Post("/sports/:sportId/durations", s.AddDuration)
	v1.Delete("/sports/:sportId/durations/:minutes", s.RemoveDuration)

	v1.Put("/sports/:sportId/locations/:locationId/exceptions/:date", s.SetLocationException)
	v1.Delete("/sports/:sportId/locations/:locationId/exceptions/:date", s.DeleteLocationException)
	v1.Put("/sports/:sportId/exceptions/:date", s.SetBulkExceptions)

	v1.Put("/settings/home", s.UpdateHomeConfig)
	v1.Put("/settings/booking-notice", s.UpdateMinBookingNotice)
	v1.Put("/settings/import-calendars", s.UpdateImportBusyCalendars)

	v1.Get("/bookings", s.ListBookings)
	v1.Post("/bookings", s.CreateBooking)
	v1.Patch("/bookings/:id", s.UpdateBooking)
	v1.Delete("/bookings/:id", s.DeleteBooking)
}
