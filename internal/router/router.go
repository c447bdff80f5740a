// Package router wires URL paths to handlers and applies the route
// group middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tanefack/community-booking/internal/handler"
	"github.com/tanefack/community-booking/internal/middleware"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Booking *handler.BookingHandler
	Payment *handler.PaymentHandler
	Ussd    *handler.UssdHandler
}

// Register mounts all routes. webhookLimiter guards the carrier-facing
// endpoints; pass nil to skip rate limiting (tests, Redis down).
func Register(e *echo.Echo, h Handlers, jwtSecret string, webhookLimiter echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Carrier webhooks. No authentication: the gateway cannot carry
	// bearer tokens, so these are protected by rate limiting and, in
	// production, network-level allow lists.
	hooks := e.Group("/webhooks")
	if webhookLimiter != nil {
		hooks.Use(webhookLimiter)
	}
	hooks.POST("/ussd", h.Ussd.Handle)
	hooks.POST("/payments", h.Payment.Callback)

	// Public catalog.
	v1 := e.Group("/v1")
	v1.GET("/halls", h.Catalog.ListHalls)
	v1.GET("/halls/:id", h.Catalog.GetHall)
	v1.GET("/halls/:id/availability", h.Catalog.HallAvailability)
	v1.GET("/events", h.Catalog.ListEvents)
	v1.GET("/events/:id", h.Catalog.GetEvent)

	// Session endpoints.
	authGroup := e.Group("/v1/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)

	// Authenticated booking API.
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", h.Auth.Me)
	auth.POST("/auth/logout", h.Auth.Logout)
	auth.POST("/bookings", h.Booking.Create)
	auth.GET("/bookings", h.Booking.List)
	auth.GET("/bookings/:id", h.Booking.Get)
	auth.POST("/bookings/:id/pay", h.Booking.Pay)
	auth.POST("/bookings/:id/cancel", h.Booking.Cancel)
	auth.GET("/payments/:id", h.Payment.Status)

	// Staff verification at the venue door.
	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireAdmin())
	admin.GET("/bookings/verify/:code", h.Booking.VerifyByReference)
}
