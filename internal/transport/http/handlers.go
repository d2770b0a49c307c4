package http

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/service/scheduling"
	"lessonbook/backend/internal/service/settings"
	"lessonbook/backend/internal/store"
)

func (s *Server) accepted(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// mutationError translates mutator failures. Validation failures are the
// caller's fault; anything else means the write did not reach the store.
func (s *Server) mutationError(c *fiber.Ctx, op string, err error) error {
	var vErr *settings.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Error()})
	}
	s.log.Error("mutation failed", slog.String("op", op), slog.Any("err", err))
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "settings write failed"})
}

func (s *Server) GetConfig(c *fiber.Ctx) error {
	return c.JSON(s.state.Config())
}

func (s *Server) GetSlots(c *fiber.Ctx) error {
	dateStr := c.Query("date")
	date, err := time.ParseInLocation("2006-01-02", dateStr, s.loc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}
	duration := c.QueryInt("duration")
	if duration <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration must be a positive number of minutes"})
	}
	sportID := c.Query("sport_id")
	locationID := c.Query("location_id")
	if sportID == "" || locationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sport_id and location_id are required"})
	}

	slots := s.scheduling.GenerateSlots(scheduling.SlotQuery{
		Date:            date,
		DurationMinutes: duration,
		SportID:         sportID,
		LocationID:      locationID,
		LessonTypeID:    c.Query("lesson_type_id"),
	})
	return c.JSON(slots)
}

func (s *Server) GetAggregatedExceptions(c *fiber.Ctx) error {
	return c.JSON(s.scheduling.AggregatedExceptions(c.Params("sportId")))
}

type addSportRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) AddSport(c *fiber.Ctx) error {
	var req addSportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	if err := s.settings.AddSport(c.Context(), req.Name); err != nil {
		return s.mutationError(c, "AddSport", err)
	}
	return s.accepted(c)
}

type updateSportRequest struct {
	Name        *string `json:"name"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
}

func (s *Server) UpdateSport(c *fiber.Ctx) error {
	var req updateSportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	err := s.settings.UpdateSport(c.Context(), c.Params("sportId"), settings.SportUpdate{
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
	})
	if err != nil {
		return s.mutationError(c, "UpdateSport", err)
	}
	return s.accepted(c)
}

func (s *Server) RemoveSport(c *fiber.Ctx) error {
	if err := s.settings.RemoveSport(c.Context(), c.Params("sportId")); err != nil {
		return s.mutationError(c, "RemoveSport", err)
	}
	return s.accepted(c)
}

type addLocationRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (s *Server) AddLocation(c *fiber.Ctx) error {
	var req addLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	if err := s.settings.AddSportLocation(c.Context(), c.Params("sportId"), req.Name, req.Address); err != nil {
		return s.mutationError(c, "AddSportLocation", err)
	}
	return s.accepted(c)
}

type updateLocationRequest struct {
	Name                   *string `json:"name"`
	Address                *string `json:"address"`
	SlotGranularityMinutes *int    `json:"slotGranularityMinutes"`
	ExternalCalendarID     *string `json:"externalCalendarId"`
}

func (s *Server) UpdateLocation(c *fiber.Ctx) error {
	var req updateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	err := s.settings.UpdateSportLocation(c.Context(), c.Params("sportId"), c.Params("locationId"), settings.LocationUpdate{
		Name:                   req.Name,
		Address:                req.Address,
		SlotGranularityMinutes: req.SlotGranularityMinutes,
		ExternalCalendarID:     req.ExternalCalendarID,
	})
	if err != nil {
		return s.mutationError(c, "UpdateSportLocation", err)
	}
	return s.accepted(c)
}

func (s *Server) RemoveLocation(c *fiber.Ctx) error {
	if err := s.settings.RemoveSportLocation(c.Context(), c.Params("sportId"), c.Params("locationId")); err != nil {
		return s.mutationError(c, "RemoveSportLocation", err)
	}
	return s.accepted(c)
}

type addLessonTypeRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) AddLessonType(c *fiber.Ctx) error {
	var req addLessonTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	if err := s.settings.AddSportLessonType(c.Context(), c.Params("sportId"), req.Name); err != nil {
		return s.mutationError(c, "AddSportLessonType", err)
	}
	return s.accepted(c)
}

func (s *Server) RemoveLessonType(c *fiber.Ctx) error {
	if err := s.settings.RemoveSportLessonType(c.Context(), c.Params("sportId"), c.Params("lessonTypeId")); err != nil {
		return s.mutationError(c, "RemoveSportLessonType", err)
	}
	return s.accepted(c)
}

type addDurationRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1"`
}

func (s *Server) AddDuration(c *fiber.Ctx) error {
	var req addDurationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	if err := s.settings.AddSportDuration(c.Context(), c.Params("sportId"), req.Minutes); err != nil {
		return s.mutationError(c, "AddSportDuration", err)
	}
	return s.accepted(c)
}

func (s *Server) RemoveDuration(c *fiber.Ctx) error {
	minutes, err := strconv.Atoi(c.Params("minutes"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "minutes must be a number"})
	}
	if err := s.settings.RemoveSportDuration(c.Context(), c.Params("sportId"), minutes); err != nil {
		return s.mutationError(c, "RemoveSportDuration", err)
	}
	return s.accepted(c)
}

func (s *Server) SetLocationException(c *fiber.Ctx) error {
	var day domain.DaySchedule
	if err := c.BodyParser(&day); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	err := s.settings.UpdateLocationException(c.Context(), c.Params("sportId"), c.Params("locationId"), c.Params("date"), &day)
	if err != nil {
		return s.mutationError(c, "UpdateLocationException", err)
	}
	return s.accepted(c)
}

func (s *Server) DeleteLocationException(c *fiber.Ctx) error {
	err := s.settings.UpdateLocationException(c.Context(), c.Params("sportId"), c.Params("locationId"), c.Params("date"), nil)
	if err != nil {
		return s.mutationError(c, "UpdateLocationException", err)
	}
	return s.accepted(c)
}

type bulkExceptionsRequest struct {
	LocationIDs []string            `json:"locationIds" validate:"required,min=1"`
	Schedule    *domain.DaySchedule `json:"schedule"`
}

func (s *Server) SetBulkExceptions(c *fiber.Ctx) error {
	var req bulkExceptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	err := s.settings.UpdateMultipleLocationsExceptions(c.Context(), c.Params("sportId"), req.LocationIDs, c.Params("date"), req.Schedule)
	if err != nil {
		return s.mutationError(c, "UpdateMultipleLocationsExceptions", err)
	}
	return s.accepted(c)
}

type homeConfigRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

func (s *Server) UpdateHomeConfig(c *fiber.Ctx) error {
	var req homeConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.settings.UpdateHomeConfig(c.Context(), req.Title, req.Subtitle); err != nil {
		return s.mutationError(c, "UpdateHomeConfig", err)
	}
	return s.accepted(c)
}

type bookingNoticeRequest struct {
	Minutes *int `json:"minutes" validate:"required"`
}

func (s *Server) UpdateMinBookingNotice(c *fiber.Ctx) error {
	var req bookingNoticeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}
	if err := s.settings.UpdateMinBookingNotice(c.Context(), *req.Minutes); err != nil {
		return s.mutationError(c, "UpdateMinBookingNotice", err)
	}
	return s.accepted(c)
}

type importCalendarsRequest struct {
	CalendarIDs []string `json:"calendarIds"`
}

func (s *Server) UpdateImportBusyCalendars(c *fiber.Ctx) error {
	var req importCalendarsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.settings.UpdateImportBusyCalendars(c.Context(), req.CalendarIDs); err != nil {
		return s.mutationError(c, "UpdateImportBusyCalendars", err)
	}
	return s.accepted(c)
}

func (s *Server) ListBookings(c *fiber.Ctx) error {
	bookings, err := s.bookings.List(c.Context())
	if err != nil {
		s.log.Error("booking list failed", slog.Any("err", err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not fetch bookings"})
	}
	if c.QueryBool("exclude_busy_blocks") {
		filtered := make([]domain.Booking, 0, len(bookings))
		for _, b := range bookings {
			if b.IsBusyBlock() {
				continue
			}
			filtered = append(filtered, b)
		}
		bookings = filtered
	}
	return c.JSON(bookings)
}

type createBookingRequest struct {
	SportID         string    `json:"sportId" validate:"required"`
	LocationID      string    `json:"locationId" validate:"required"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"required,min=1"`
	LessonTypeID    string    `json:"lessonTypeId"`
	CustomerName    string    `json:"customerName" validate:"required"`
	CustomerEmail   string    `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string    `json:"customerPhone"`
	Notes           string    `json:"notes"`
}

func (s *Server) CreateBooking(c *fiber.Ctx) error {
	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}

	// The stored sport name keeps bookings displayable after the sport is
	// removed from the configuration.
	sportName := ""
	cfg := s.state.Config()
	if sport := cfg.FindSport(req.SportID); sport != nil {
		sportName = sport.Name
	}

	booking, err := s.bookings.Create(c.Context(), domain.Booking{
		SportID:         req.SportID,
		SportName:       sportName,
		LocationID:      req.LocationID,
		Date:            domain.DateKey(req.StartTime, s.loc),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		LessonTypeID:    req.LessonTypeID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
	})
	if err != nil {
		s.log.Error("booking create failed", slog.Any("err", err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not create booking"})
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

type updateBookingRequest struct {
	StartTime       *time.Time `json:"startTime"`
	DurationMinutes *int       `json:"durationMinutes" validate:"omitempty,min=1"`
	CustomerName    *string    `json:"customerName"`
	CustomerEmail   *string    `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   *string    `json:"customerPhone"`
	Notes           *string    `json:"notes"`
}

func (s *Server) UpdateBooking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid booking id"})
	}

	var req updateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot parse JSON"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": err.Error()})
	}

	existing, ok := s.findCachedBooking(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "booking not found"})
	}

	if req.StartTime != nil {
		existing.StartTime = *req.StartTime
		existing.Date = domain.DateKey(*req.StartTime, s.loc)
	}
	if req.DurationMinutes != nil {
		existing.DurationMinutes = *req.DurationMinutes
	}
	if req.CustomerName != nil {
		existing.CustomerName = *req.CustomerName
	}
	if req.CustomerEmail != nil {
		existing.CustomerEmail = *req.CustomerEmail
	}
	if req.CustomerPhone != nil {
		existing.CustomerPhone = *req.CustomerPhone
	}
	if req.Notes != nil {
		existing.Notes = *req.Notes
	}

	booking, err := s.bookings.Update(c.Context(), existing)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "booking not found"})
		}
		s.log.Error("booking update failed", slog.Any("err", err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not update booking"})
	}
	return c.JSON(booking)
}

func (s *Server) DeleteBooking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid booking id"})
	}
	if err := s.bookings.Delete(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "booking not found"})
		}
		s.log.Error("booking delete failed", slog.Any("err", err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "could not delete booking"})
	}
	return s.accepted(c)
}

func (s *Server) findCachedBooking(id uuid.UUID) (domain.Booking, bool) {
	for _, b := range s.state.Bookings() {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}
