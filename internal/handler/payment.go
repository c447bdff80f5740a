package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tanefack/community-booking/internal/payment"
	"github.com/tanefack/community-booking/internal/repository"
)

// PaymentHandler serves the gateway callback webhook and the
// transaction status poll used by web clients after initiating a
// payment.
type PaymentHandler struct {
	Payments *payment.Service
}

func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{Payments: payments}
}

// Callback receives the asynchronous charge notification. The gateway
// retries non-200 responses, so every outcome including an unmatched
// notification is acknowledged with 200; retrying cannot make an
// unmatched callback match.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var cb payment.Callback
	if err := c.Bind(&cb); err != nil {
		log.Printf("payment: malformed callback: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"status": "error"})
	}

	res, err := h.Payments.HandleCallback(c.Request().Context(), &cb)
	if err != nil {
		log.Printf("payment: callback processing failed: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"status": "error"})
	}
	if !res.Matched {
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}
	if res.Confirmed {
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "booking_id": res.BookingID})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "failed", "booking_id": res.BookingID})
}

// Status returns the current state of a transaction so the web client
// can poll while the STK push is outstanding.
func (h *PaymentHandler) Status(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	uid := CurrentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx := c.Request().Context()
	t, err := h.Payments.GetTransactionForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         t.ID,
		"booking_id": t.BookingID,
		"status":     string(t.Status),
		"amount":     t.AmountCents,
		"updated_at": t.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
