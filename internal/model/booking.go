package model

import "time"

// ResourceType tags which catalog table a booking points at.  Bookings
// reference either a hall (time-sliced) or an event (quantity-sliced);
// every engine and catalog boundary switches on this tag rather than
// resolving types at runtime.
type ResourceType string

const (
	ResourceHall  ResourceType = "hall"
	ResourceEvent ResourceType = "event"
)

// Valid reports whether the tag is one of the two known resource kinds.
func (t ResourceType) Valid() bool {
	return t == ResourceHall || t == ResourceEvent
}

// BookingStatus enumerates the booking lifecycle.  A booking starts as
// pending (a hold), and moves to exactly one of confirmed, cancelled or
// expired.  A confirmed booking may still be cancelled; cancelled and
// expired are absorbing.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

// CanTransition reports whether the status machine permits moving from
// one status to another.  All mutations of a booking's status must pass
// this check; there are no other legal writes.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCancelled || to == BookingExpired
	case BookingConfirmed:
		return to == BookingCancelled
	default:
		return false
	}
}

// BookingSource records which front-end created the booking.
type BookingSource string

const (
	SourceWeb  BookingSource = "web"
	SourceUSSD BookingSource = "ussd"
)

// Booking is the reservation ledger record shared by both channels.
// Hall bookings carry a date plus a half-open [StartTime, EndTime) time
// interval; event bookings carry a ticket quantity instead.  Amounts
// are stored in cents to avoid floating point money.
//
// Fields:
//
//	ID            – primary key identifier.
//	UserID        – owner of the booking.
//	ResourceType  – hall or event (tagged union discriminator).
//	ResourceID    – id in the halls or events table per ResourceType.
//	BookingDate   – calendar date being booked (date component only).
//	StartTime     – hall interval start "HH:MM" (nil for events).
//	EndTime       – hall interval end "HH:MM", exclusive (nil for events).
//	Quantity      – ticket count for events (1 for halls).
//	AmountCents   – computed total price in cents.
//	Status        – lifecycle state, see BookingStatus.
//	ReferenceCode – human-readable code for offline verification.
//	HoldExpiresAt – when the pending hold lapses (nil once confirmed).
//	ConfirmedAt   – when payment confirmed the booking (nil otherwise).
//	Source        – channel that created the booking (web or ussd).
type Booking struct {
	ID            uint64        // bookings.id
	UserID        uint64        // bookings.user_id
	ResourceType  ResourceType  // bookings.resource_type
	ResourceID    uint64        // bookings.resource_id
	BookingDate   string        // bookings.booking_date ("2006-01-02")
	StartTime     *string       // bookings.start_time (nullable, "15:04")
	EndTime       *string       // bookings.end_time (nullable, "15:04")
	Quantity      int           // bookings.quantity
	AmountCents   int64         // bookings.amount_cents
	Status        BookingStatus // bookings.status
	ReferenceCode string        // bookings.reference_code
	HoldExpiresAt *time.Time    // bookings.hold_expires_at (nullable)
	ConfirmedAt   *time.Time    // bookings.confirmed_at (nullable)
	Source        BookingSource // bookings.source
	CreatedAt     time.Time     // bookings.created_at
	UpdatedAt     time.Time     // bookings.updated_at
}

// IsPending reports whether the booking is an unexpired-or-not hold
// awaiting payment.
func (b *Booking) IsPending() bool { return b.Status == BookingPending }

// IsConfirmed reports whether payment has confirmed the booking.
func (b *Booking) IsConfirmed() bool { return b.Status == BookingConfirmed }

// Overlaps reports whether two half-open "HH:MM" intervals intersect.
// Zero-padded 24h clock strings order lexicographically, so plain
// string comparison implements existing.start < new.end AND
// existing.end > new.start.  Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}
