// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking engine and handlers to distinguish between different failure
// scenarios without depending on driver-specific errors.
package repository

import "errors"

// ErrHallNotFound is returned when a hall lookup fails.
var ErrHallNotFound = errors.New("hall not found")

// ErrEventNotFound is returned when an event lookup fails.
var ErrEventNotFound = errors.New("event not found")

// ErrBookingNotFound is returned when a booking lookup fails.
var ErrBookingNotFound = errors.New("booking not found")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = errors.New("user not found")

// ErrTransactionNotFound is returned when no transaction matches the
// given criteria; the payment callback reconciliation relies on this
// to treat duplicate callbacks as a no-op.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrSlotsExhausted is returned by the conditional event slot
// increment when seating the requested quantity would push
// booked_slots past available_slots.
var ErrSlotsExhausted = errors.New("event slots exhausted")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrPhoneExists is returned when registering with a phone number that
// is already taken.
var ErrPhoneExists = errors.New("phone number already exists")
