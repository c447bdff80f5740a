package model

import "time"

// TransactionStatus enumerates the payment attempt lifecycle.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction records one payment attempt for a booking (at most one
// per booking in this design).  ProviderResponse holds the last raw
// gateway payload as an opaque blob kept for audit and debugging; it
// is never parsed beyond status and id extraction at callback time.
//
// Fields:
//
//	ID          – primary key identifier.
//	BookingID   – the booking being paid for.
//	PhoneNumber – MSISDN the STK push was sent to.
//	AmountCents – charged amount in cents.
//	ProviderTransactionID – gateway-assigned id, nil until the callback.
//	Status      – pending until the callback resolves it.
//	ProviderResponse – last raw provider payload (opaque JSON).
type Transaction struct {
	ID                    uint64            // transactions.id
	BookingID             uint64            // transactions.booking_id
	PhoneNumber           string            // transactions.phone_number
	AmountCents           int64             // transactions.amount_cents
	ProviderTransactionID *string           // transactions.provider_transaction_id (nullable)
	Status                TransactionStatus // transactions.status
	ProviderResponse      []byte            // transactions.provider_response (nullable JSON)
	CreatedAt             time.Time         // transactions.created_at
	UpdatedAt             time.Time         // transactions.updated_at
}

// IsPending reports whether the transaction is still awaiting its
// gateway callback.
func (t *Transaction) IsPending() bool { return t.Status == TransactionPending }
