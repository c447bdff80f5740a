package model

import "time"

// Hall is a time-sliced venue booked by date plus a half-open time
// interval.  Availability is computed per request from overlapping
// ledger rows; there is no persistent occupancy counter to keep in
// sync.  This struct corresponds to a row in the `halls` table.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – display name shown on web and USSD screens.
//	Description    – optional description of the hall.
//	Capacity       – seated capacity (informational only).
//	PricePerHourCents – hourly rate in cents.
//	IsActive       – inactive halls are hidden from both channels.
type Hall struct {
	ID                uint64    // halls.id
	Name              string    // halls.name
	Description       *string   // halls.description (nullable)
	Capacity          int       // halls.capacity
	PricePerHourCents int64     // halls.price_per_hour_cents
	IsActive          bool      // halls.is_active
	CreatedAt         time.Time // halls.created_at
	UpdatedAt         time.Time // halls.updated_at
}
