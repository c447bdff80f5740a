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
	"github.com/tanefack/community-booking/internal/repository"
)

// CatalogHandler serves the public hall and event listings plus the
// availability probe used before creating a hold.
type CatalogHandler struct {
	Halls  *repository.HallRepo
	Events *repository.EventRepo
	Engine *booking.Engine
}

func NewCatalogHandler(halls *repository.HallRepo, events *repository.EventRepo, engine *booking.Engine) *CatalogHandler {
	return &CatalogHandler{Halls: halls, Events: events, Engine: engine}
}

type hallPart struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Capacity          int    `json:"capacity"`
	PricePerHourCents int64  `json:"price_per_hour_cents"`
}

type eventPart struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	EventDate        string `json:"event_date"`
	StartTime        string `json:"start_time"`
	Location         string `json:"location"`
	TicketPriceCents int64  `json:"ticket_price_cents"`
	RemainingSlots   int    `json:"remaining_slots"`
}

func hallToPart(h *model.Hall) hallPart {
	p := hallPart{
		ID: h.ID, Name: h.Name, Capacity: h.Capacity,
		PricePerHourCents: h.PricePerHourCents,
	}
	if h.Description != nil {
		p.Description = *h.Description
	}
	return p
}

func eventToPart(e *model.Event) eventPart {
	p := eventPart{
		ID: e.ID, Name: e.Name, EventDate: e.EventDate, StartTime: e.StartTime,
		Location: e.Location, TicketPriceCents: e.TicketPriceCents,
		RemainingSlots: e.RemainingSlots(),
	}
	if e.Description != nil {
		p.Description = *e.Description
	}
	return p
}

// ListHalls returns a page of active halls. Query params: page (1
// based), per_page (max 50).
func (h *CatalogHandler) ListHalls(c echo.Context) error {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 20)
	if perPage > 50 {
		perPage = 50
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	halls, err := h.Halls.ListActive(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list halls failed"})
	}
	out := make([]hallPart, 0, len(halls))
	for i := range halls {
		out = append(out, hallToPart(&halls[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"halls": out, "page": page})
}

// GetHall returns a single active hall.
func (h *CatalogHandler) GetHall(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hall, err := h.Halls.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get hall failed"})
	}
	return c.JSON(http.StatusOK, hallToPart(hall))
}

// HallAvailability probes whether a hall is free for the given
// half-open interval. Query params: date (YYYY-MM-DD), start, end
// (HH:MM). Pending holds count as busy.
func (h *CatalogHandler) HallAvailability(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	date, start, end := c.QueryParam("date"), c.QueryParam("start"), c.QueryParam("end")
	if date == "" || start == "" || end == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date/start/end required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	available, err := h.Engine.HallAvailable(ctx, id, date, start, end)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidInterval) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid interval"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": available})
}

// ListEvents returns upcoming events that still have open slots.
func (h *CatalogHandler) ListEvents(c echo.Context) error {
	limit := queryInt(c, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.ListOpen(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	out := make([]eventPart, 0, len(events))
	for i := range events {
		out = append(out, eventToPart(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GetEvent returns a single event with its remaining capacity.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	event, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get event failed"})
	}
	return c.JSON(http.StatusOK, eventToPart(event))
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
