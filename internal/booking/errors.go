// Package booking implements the reservation engine shared by the web
// and USSD channels: availability checks, hold creation, payment-driven
// confirmation, cancellation and hold expiry.  It is the single writer
// of booking status and event slot counters.
package booking

import "errors"

// ErrResourceNotFound is returned when the target hall or event id
// does not resolve.
var ErrResourceNotFound = errors.New("resource not found")

// ErrResourceUnavailable is returned when the re-validated availability
// check fails: the hall interval overlaps an existing hold or
// confirmed booking, or the event lacks the requested slots.
var ErrResourceUnavailable = errors.New("resource unavailable")

// ErrInvalidResourceType is returned for any resource tag outside
// {hall, event}.
var ErrInvalidResourceType = errors.New("invalid resource type")

// ErrInvalidInterval is returned when a hall booking's time interval
// is malformed or empty (start must precede end).
var ErrInvalidInterval = errors.New("invalid time interval")

// ErrInvalidStatus is returned when a confirm or cancel request would
// violate the booking status machine.
var ErrInvalidStatus = errors.New("invalid status transition")
