package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tanefack/community-booking/internal/ussd"
)

// UssdHandler is the carrier-facing webhook. The gateway POSTs a form
// on every keystroke and renders whatever plain text comes back, so
// this endpoint always answers 200 with a CON or END screen; an HTTP
// error would surface as a carrier-side failure message to the caller.
type UssdHandler struct {
	Machine *ussd.Machine
}

func NewUssdHandler(machine *ussd.Machine) *UssdHandler {
	return &UssdHandler{Machine: machine}
}

// Handle processes one USSD keystroke. Form fields follow the
// Africa's Talking contract: sessionId, phoneNumber, serviceCode and
// the *-joined text history.
func (h *UssdHandler) Handle(c echo.Context) error {
	sessionID := c.FormValue("sessionId")
	phone := c.FormValue("phoneNumber")
	text := c.FormValue("text")
	if sessionID == "" || phone == "" {
		return c.String(http.StatusOK, "END Invalid request.")
	}

	screen, err := h.Machine.Handle(c.Request().Context(), sessionID, phone, text)
	if err != nil {
		log.Printf("ussd: session=%s: %v", sessionID, err)
		return c.String(http.StatusOK, "END An error occurred. Please try again.")
	}
	return c.String(http.StatusOK, screen)
}
