// Package queue defines message payloads exchanged over the message broker
// and the background consumer that delivers them.
package queue

// Queue names. Both are durable; messages are published persistent.
const (
	BookingConfirmedQueue = "booking.confirmed"
	SmsOutboundQueue      = "sms.outbound"
)

// BookingConfirmedEvent is published when a booking is confirmed after
// a successful payment. It carries enough for downstream consumers to
// compose the SMS receipt and write audit logs without querying the
// primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64 `json:"booking_id"`
	ReferenceCode string `json:"reference_code"`
	UserID        uint64 `json:"user_id"`
	PhoneNumber   string `json:"phone_number"`
	ResourceType  string `json:"resource_type"` // "hall" or "event"
	ResourceName  string `json:"resource_name"`
	BookingDate   string `json:"booking_date"` // "2006-01-02"
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// SmsMessage is a generic outbound text, used for booking history and
// other ad hoc notifications.
type SmsMessage struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}
