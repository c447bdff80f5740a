package router

import (
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/tanefack/community-booking/internal/config"
	"github.com/tanefack/community-booking/internal/handler"
)

func TestRegisterMountsRoutes(t *testing.T) {
	e := echo.New()
	Register(e, Handlers{
		Auth:    handler.NewAuthHandler(config.Config{}, nil, nil),
		Catalog: handler.NewCatalogHandler(nil, nil, nil),
		Booking: handler.NewBookingHandler(nil, nil, nil, nil),
		Payment: handler.NewPaymentHandler(nil),
		Ussd:    handler.NewUssdHandler(nil),
	}, "secret", nil)

	mounted := map[string]bool{}
	for _, r := range e.Routes() {
		mounted[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /webhooks/ussd",
		"POST /webhooks/payments",
		"GET /v1/halls/:id/availability",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/me",
		"POST /v1/bookings",
		"POST /v1/bookings/:id/pay",
		"GET /v1/payments/:id",
		"GET /v1/admin/bookings/verify/:code",
	} {
		assert.True(t, mounted[want], want)
	}
}
