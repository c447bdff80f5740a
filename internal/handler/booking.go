package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/payment"
	"github.com/tanefack/community-booking/internal/repository"
)

// BookingHandler serves the authenticated booking endpoints: creating
// holds, starting payment, cancelling, listing and offline
// verification by reference code.
type BookingHandler struct {
	Engine   *booking.Engine
	Payments *payment.Service
	Users    *repository.UserRepo
	Bookings *repository.BookingRepo
}

func NewBookingHandler(engine *booking.Engine, payments *payment.Service, users *repository.UserRepo, bookings *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Engine: engine, Payments: payments, Users: users, Bookings: bookings}
}

type createBookingReq struct {
	ResourceType string `json:"resource_type"` // "hall" or "event"
	ResourceID   uint64 `json:"resource_id"`
	Date         string `json:"date"`       // YYYY-MM-DD, halls only
	StartTime    string `json:"start_time"` // HH:MM, halls only
	EndTime      string `json:"end_time"`   // HH:MM, halls only
	Quantity     int    `json:"quantity"`   // events only, defaults to 1
}

type bookingPart struct {
	ID            uint64     `json:"id"`
	ResourceType  string     `json:"resource_type"`
	ResourceID    uint64     `json:"resource_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time,omitempty"`
	EndTime       string     `json:"end_time,omitempty"`
	Quantity      int        `json:"quantity,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	Status        string     `json:"status"`
	ReferenceCode string     `json:"reference_code"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

func bookingToPart(b *model.Booking) bookingPart {
	p := bookingPart{
		ID:            b.ID,
		ResourceType:  string(b.ResourceType),
		ResourceID:    b.ResourceID,
		Date:          b.BookingDate,
		Quantity:      b.Quantity,
		AmountCents:   b.AmountCents,
		Status:        string(b.Status),
		ReferenceCode: b.ReferenceCode,
		HoldExpiresAt: b.HoldExpiresAt,
		ConfirmedAt:   b.ConfirmedAt,
	}
	if b.StartTime != nil {
		p.StartTime = *b.StartTime
	}
	if b.EndTime != nil {
		p.EndTime = *b.EndTime
	}
	return p
}

// Create places a hold for the authenticated user. The hold must be
// paid before it expires or the sweeper releases it.
func (h *BookingHandler) Create(c echo.Context) error {
	uid := CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	rt := model.ResourceType(req.ResourceType)
	if !rt.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resource_type must be hall or event"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	b, err := h.Engine.CreateBooking(ctx, user, rt, req.ResourceID, booking.CreateParams{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Quantity:  req.Quantity,
		Source:    model.SourceWeb,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrResourceNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		case errors.Is(err, booking.ErrResourceUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "resource not available"})
		case errors.Is(err, booking.ErrInvalidInterval):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date or time interval"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	return c.JSON(http.StatusCreated, bookingToPart(b))
}

// Pay starts the mobile money prompt for a pending booking.
func (h *BookingHandler) Pay(c echo.Context) error {
	uid := CurrentUserID(c)
	b, status, errMsg := h.ownBooking(c, uid)
	if b == nil {
		return c.JSON(status, echo.Map{"error": errMsg})
	}
	if !b.IsPending() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	t, err := h.Payments.InitiatePayment(ctx, b, user)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment initiation failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"transaction_id": t.ID,
		"status":         string(t.Status),
	})
}

// Cancel releases a pending or confirmed booking owned by the caller.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid := CurrentUserID(c)
	b, status, errMsg := h.ownBooking(c, uid)
	if b == nil {
		return c.JSON(status, echo.Map{"error": errMsg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Engine.CancelBooking(ctx, b.ID); err != nil {
		if errors.Is(err, booking.ErrInvalidStatus) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns the caller's recent bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	uid := CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := queryInt(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bookings, err := h.Bookings.ListByUser(ctx, uid, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	out := make([]bookingPart, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingToPart(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Get returns one booking owned by the caller.
func (h *BookingHandler) Get(c echo.Context) error {
	uid := CurrentUserID(c)
	b, status, errMsg := h.ownBooking(c, uid)
	if b == nil {
		return c.JSON(status, echo.Map{"error": errMsg})
	}
	return c.JSON(http.StatusOK, bookingToPart(b))
}

// VerifyByReference resolves a reference code for staff at the venue.
// Admin only; exposes status and schedule, never the payer's details.
func (h *BookingHandler) VerifyByReference(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.FindBookingByReference(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, bookingToPart(b))
}

// ownBooking loads the :id booking and checks ownership. Returns nil
// plus an HTTP status and message when the caller may not act on it.
func (h *BookingHandler) ownBooking(c echo.Context, uid uint64) (*model.Booking, int, string) {
	if uid == 0 {
		return nil, http.StatusUnauthorized, "unauthorized"
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid id"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, http.StatusNotFound, "booking not found"
		}
		return nil, http.StatusInternalServerError, "get booking failed"
	}
	if b.UserID != uid {
		return nil, http.StatusNotFound, "booking not found"
	}
	return b, 0, ""
}
