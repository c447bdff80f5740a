package model

import "time"

// Event is a quantity-sliced resource sold as tickets.  AvailableSlots
// is the fixed capacity and BookedSlots the committed count; the
// invariant BookedSlots <= AvailableSlots holds at all times and
// BookedSlots is mutated only by the booking engine's confirm and
// cancel paths, never written directly.
//
// Fields:
//
//	ID               – primary key identifier.
//	Name             – display name shown on web and USSD screens.
//	Description      – optional description.
//	EventDate        – calendar date of the event.
//	StartTime        – "HH:MM" start of the event (informational).
//	Location         – venue text.
//	TicketPriceCents – fixed price per ticket in cents.
//	AvailableSlots   – total ticket capacity.
//	BookedSlots      – tickets committed by confirmed bookings.
//	IsActive         – inactive events are hidden from both channels.
type Event struct {
	ID               uint64    // events.id
	Name             string    // events.name
	Description      *string   // events.description (nullable)
	EventDate        string    // events.event_date ("2006-01-02")
	StartTime        string    // events.start_time ("15:04")
	Location         string    // events.location
	TicketPriceCents int64     // events.ticket_price_cents
	AvailableSlots   int       // events.available_slots
	BookedSlots      int       // events.booked_slots
	IsActive         bool      // events.is_active
	CreatedAt        time.Time // events.created_at
	UpdatedAt        time.Time // events.updated_at
}

// RemainingSlots returns how many tickets can still be confirmed.
func (e *Event) RemainingSlots() int {
	if n := e.AvailableSlots - e.BookedSlots; n > 0 {
		return n
	}
	return 0
}

// HasAvailableSlots reports whether the event can still seat the
// requested quantity.  This is the snapshot check used at booking
// creation; the binding check happens at confirm time.
func (e *Event) HasAvailableSlots(quantity int) bool {
	return e.AvailableSlots-e.BookedSlots >= quantity
}
