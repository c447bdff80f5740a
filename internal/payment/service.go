package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
)

// ErrCheckoutRejected means the gateway refused to queue the STK push.
var ErrCheckoutRejected = errors.New("payment: checkout rejected by gateway")

// TransactionStore is the slice of the transaction repository the
// service needs.
type TransactionStore interface {
	Create(ctx context.Context, t *model.Transaction) error
	GetByID(ctx context.Context, id uint64) (*model.Transaction, error)
	SaveProviderResponse(ctx context.Context, id uint64, raw []byte) error
	MarkSuccess(ctx context.Context, id uint64, providerID string, raw []byte) error
	MarkFailed(ctx context.Context, id uint64, raw []byte) error
	FindPendingByBooking(ctx context.Context, bookingID uint64) (*model.Transaction, error)
	FindPendingByPhoneAmount(ctx context.Context, phone string, amountCents int64) (*model.Transaction, error)
}

// Confirmer is the slice of the booking engine driven by callbacks.
type Confirmer interface {
	ConfirmBooking(ctx context.Context, bookingID uint64) error
	CancelBooking(ctx context.Context, bookingID uint64) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	FindBookingByReference(ctx context.Context, code string) (*model.Booking, error)
}

// Notifier is told about confirmed bookings; delivery is asynchronous
// and best effort, failures never fail the callback.
type Notifier interface {
	PublishBookingConfirmed(ctx context.Context, b *model.Booking) error
}

// Service owns the payment lifecycle: one pending transaction per
// initiated hold, resolved exactly once by the first matching callback.
type Service struct {
	gateway      Gateway
	transactions TransactionStore
	engine       Confirmer
	notifier     Notifier

	username     string
	productName  string
	currencyCode string
}

// NewService wires the payment service.  notifier may be nil in tests.
func NewService(gateway Gateway, transactions TransactionStore, engine Confirmer, notifier Notifier, username, productName, currencyCode string) *Service {
	return &Service{
		gateway:      gateway,
		transactions: transactions,
		engine:       engine,
		notifier:     notifier,
		username:     username,
		productName:  productName,
		currencyCode: currencyCode,
	}
}

// InitiatePayment records a pending transaction for the hold and asks
// the gateway to push the payment prompt to the user's phone.  The
// transaction row is created before the gateway call so a callback
// racing the response always finds something to match.
func (s *Service) InitiatePayment(ctx context.Context, b *model.Booking, u *model.User) (*model.Transaction, error) {
	t := &model.Transaction{
		BookingID:   b.ID,
		PhoneNumber: u.PhoneNumber,
		AmountCents: b.AmountCents,
		Status:      model.TransactionPending,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	resp, raw, err := s.gateway.MobileCheckout(ctx, CheckoutRequest{
		Username:     s.username,
		ProductName:  s.productName,
		PhoneNumber:  u.PhoneNumber,
		CurrencyCode: s.currencyCode,
		Amount:       float64(b.AmountCents) / 100,
		Metadata: map[string]string{
			"booking_id":     strconv.FormatUint(b.ID, 10),
			"transaction_id": strconv.FormatUint(t.ID, 10),
			"reference":      b.ReferenceCode,
		},
	})
	if raw != nil {
		if saveErr := s.transactions.SaveProviderResponse(ctx, t.ID, raw); saveErr != nil {
			log.Printf("payment: save provider response tx=%d: %v", t.ID, saveErr)
		}
	}
	if err != nil {
		if markErr := s.transactions.MarkFailed(ctx, t.ID, raw); markErr != nil {
			log.Printf("payment: mark failed tx=%d: %v", t.ID, markErr)
		}
		return nil, fmt.Errorf("mobile checkout: %w", err)
	}
	if !resp.Accepted() {
		if markErr := s.transactions.MarkFailed(ctx, t.ID, raw); markErr != nil {
			log.Printf("payment: mark failed tx=%d: %v", t.ID, markErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrCheckoutRejected, resp.Description)
	}
	return t, nil
}

// Callback is the gateway's asynchronous payment notification.  Field
// availability varies by provider version, which is why matching runs
// through three strategies instead of trusting any single field.
type Callback struct {
	Status          string            `json:"status"`
	TransactionID   string            `json:"transactionId"`
	Category        string            `json:"category"`
	Provider        string            `json:"provider"`
	ClientAccount   string            `json:"clientAccount"`
	PhoneNumber     string            `json:"phoneNumber"`
	Value           string            `json:"value"` // e.g. "FCFA 5000.00"
	RequestMetadata map[string]string `json:"requestMetadata"`
}

// Succeeded reports whether the gateway charged the user.
func (c *Callback) Succeeded() bool {
	return c.Status == "Success" || c.Status == "Completed"
}

// Result summarizes callback handling for the webhook response.
type Result struct {
	Matched   bool
	Confirmed bool
	BookingID uint64
}

// HandleCallback matches the notification to a pending transaction and
// settles it.  Matching strategies, in order: the booking_id we put in
// the request metadata, the clientAccount carrying our reference code,
// and finally phone number plus amount.  An unmatched callback is
// acknowledged and dropped so the gateway stops retrying; duplicates
// are no-ops because a settled transaction is no longer pending.
func (s *Service) HandleCallback(ctx context.Context, cb *Callback) (Result, error) {
	raw, _ := json.Marshal(cb)

	t, err := s.matchTransaction(ctx, cb)
	if err != nil {
		return Result{}, err
	}
	if t == nil {
		log.Printf("payment: unmatched callback provider_tx=%s phone=%s", cb.TransactionID, cb.PhoneNumber)
		return Result{Matched: false}, nil
	}

	if !cb.Succeeded() {
		if err := s.transactions.MarkFailed(ctx, t.ID, raw); err != nil {
			return Result{}, fmt.Errorf("mark failed: %w", err)
		}
		// The hold stays pending and lapses through the expiry sweep,
		// leaving room for a manual payment retry before the deadline.
		log.Printf("payment: tx=%d booking=%d failed with status %q", t.ID, t.BookingID, cb.Status)
		return Result{Matched: true, Confirmed: false, BookingID: t.BookingID}, nil
	}

	if err := s.transactions.MarkSuccess(ctx, t.ID, cb.TransactionID, raw); err != nil {
		return Result{}, fmt.Errorf("mark success: %w", err)
	}
	if err := s.engine.ConfirmBooking(ctx, t.BookingID); err != nil {
		if errors.Is(err, booking.ErrResourceUnavailable) {
			// Paid but the last slots went to someone else.  Release the
			// hold and flag the charge for a manual refund.
			if cancelErr := s.engine.CancelBooking(ctx, t.BookingID); cancelErr != nil {
				log.Printf("payment: cancel exhausted booking=%d: %v", t.BookingID, cancelErr)
			}
			log.Printf("payment: REFUND NEEDED tx=%d booking=%d: slots exhausted after successful charge", t.ID, t.BookingID)
			return Result{Matched: true, Confirmed: false, BookingID: t.BookingID}, nil
		}
		return Result{}, fmt.Errorf("confirm booking %d: %w", t.BookingID, err)
	}

	if s.notifier != nil {
		if b, err := s.engine.GetBooking(ctx, t.BookingID); err == nil {
			if err := s.notifier.PublishBookingConfirmed(ctx, b); err != nil {
				log.Printf("payment: publish confirmation booking=%d: %v", t.BookingID, err)
			}
		}
	}
	return Result{Matched: true, Confirmed: true, BookingID: t.BookingID}, nil
}

// matchTransaction resolves the callback to its pending transaction,
// or nil when nothing matches.
func (s *Service) matchTransaction(ctx context.Context, cb *Callback) (*model.Transaction, error) {
	if idStr := cb.RequestMetadata["booking_id"]; idStr != "" {
		if bookingID, err := strconv.ParseUint(idStr, 10, 64); err == nil {
			t, err := s.transactions.FindPendingByBooking(ctx, bookingID)
			if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}
	if cb.ClientAccount != "" {
		b, err := s.engine.FindBookingByReference(ctx, cb.ClientAccount)
		if err != nil && !errors.Is(err, booking.ErrResourceNotFound) && !errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		if b != nil {
			t, err := s.transactions.FindPendingByBooking(ctx, b.ID)
			if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}
	if cb.PhoneNumber != "" {
		if cents, ok := parseValueCents(cb.Value); ok {
			t, err := s.transactions.FindPendingByPhoneAmount(ctx, cb.PhoneNumber, cents)
			if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}
	return nil, nil
}

// GetTransactionForUser exposes transaction status to the polling
// endpoint.  A transaction whose booking belongs to someone else reads
// as not found, the same way the booking endpoints hide foreign rows.
func (s *Service) GetTransactionForUser(ctx context.Context, id, userID uint64) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := s.engine.GetBooking(ctx, t.BookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrTransactionNotFound
	}
	return t, nil
}

// parseValueCents parses a "CUR 1234.56" display amount into cents.
// The currency prefix is optional; anything unparseable returns false.
func parseValueCents(value string) (int64, bool) {
	s := strings.TrimSpace(value)
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	whole, frac := s, "00"
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]+"00"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac[:2], 10, 64)
	if err != nil {
		return 0, false
	}
	return w*100 + f, true
}
