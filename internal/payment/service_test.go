package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
)

// ----- stubs -----

type stubTransactions struct {
	created   []*model.Transaction
	succeeded []uint64
	failed    []uint64

	pendingByBooking map[uint64]*model.Transaction
	pendingByPhone   map[string]*model.Transaction
}

func newStubTransactions() *stubTransactions {
	return &stubTransactions{
		pendingByBooking: map[uint64]*model.Transaction{},
		pendingByPhone:   map[string]*model.Transaction{},
	}
}

func (s *stubTransactions) Create(_ context.Context, t *model.Transaction) error {
	t.ID = uint64(len(s.created) + 1)
	s.created = append(s.created, t)
	return nil
}

func (s *stubTransactions) GetByID(_ context.Context, id uint64) (*model.Transaction, error) {
	for _, t := range s.created {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (s *stubTransactions) SaveProviderResponse(_ context.Context, _ uint64, _ []byte) error {
	return nil
}

func (s *stubTransactions) MarkSuccess(_ context.Context, id uint64, _ string, _ []byte) error {
	s.succeeded = append(s.succeeded, id)
	s.dropPending(id)
	return nil
}

func (s *stubTransactions) MarkFailed(_ context.Context, id uint64, _ []byte) error {
	s.failed = append(s.failed, id)
	s.dropPending(id)
	return nil
}

// dropPending mirrors the repository contract: the pending lookups
// only ever see unresolved rows.
func (s *stubTransactions) dropPending(id uint64) {
	for k, t := range s.pendingByBooking {
		if t.ID == id {
			delete(s.pendingByBooking, k)
		}
	}
	for k, t := range s.pendingByPhone {
		if t.ID == id {
			delete(s.pendingByPhone, k)
		}
	}
}

func (s *stubTransactions) FindPendingByBooking(_ context.Context, bookingID uint64) (*model.Transaction, error) {
	if t, ok := s.pendingByBooking[bookingID]; ok {
		return t, nil
	}
	return nil, repository.ErrTransactionNotFound
}

func (s *stubTransactions) FindPendingByPhoneAmount(_ context.Context, phone string, amountCents int64) (*model.Transaction, error) {
	if t, ok := s.pendingByPhone[phone]; ok && t.AmountCents == amountCents {
		return t, nil
	}
	return nil, repository.ErrTransactionNotFound
}

type stubConfirmer struct {
	confirmErr error
	confirmed  []uint64
	cancelled  []uint64
	byRef      map[string]*model.Booking
	byID       map[uint64]*model.Booking
}

func (s *stubConfirmer) ConfirmBooking(_ context.Context, id uint64) error {
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, id)
	return nil
}

func (s *stubConfirmer) CancelBooking(_ context.Context, id uint64) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

func (s *stubConfirmer) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	if b, ok := s.byID[id]; ok {
		return b, nil
	}
	return &model.Booking{ID: id, Status: model.BookingConfirmed}, nil
}

func (s *stubConfirmer) FindBookingByReference(_ context.Context, code string) (*model.Booking, error) {
	if b, ok := s.byRef[code]; ok {
		return b, nil
	}
	return nil, repository.ErrBookingNotFound
}

type stubGateway struct {
	resp *CheckoutResponse
	err  error
	reqs []CheckoutRequest
}

func (s *stubGateway) MobileCheckout(_ context.Context, req CheckoutRequest) (*CheckoutResponse, []byte, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, []byte(`{"status":"error"}`), s.err
	}
	return s.resp, []byte(`{"status":"ok"}`), nil
}

type stubNotifier struct {
	published []uint64
}

func (s *stubNotifier) PublishBookingConfirmed(_ context.Context, b *model.Booking) error {
	s.published = append(s.published, b.ID)
	return nil
}

func newService(gw *stubGateway, tx *stubTransactions, eng *stubConfirmer, n *stubNotifier) *Service {
	// Pass a true nil interface when n is nil so the service's
	// notifier != nil guard sees it as absent.
	var notifier Notifier
	if n != nil {
		notifier = n
	}
	return NewService(gw, tx, eng, notifier, "sandbox", "CommunityBooking", "XAF")
}

// ----- tests -----

func TestInitiatePaymentQueuesCheckout(t *testing.T) {
	gw := &stubGateway{resp: &CheckoutResponse{Status: "PendingConfirmation", TransactionID: "ATPid_1"}}
	tx := newStubTransactions()
	svc := newService(gw, tx, &stubConfirmer{}, nil)

	b := &model.Booking{ID: 9, ReferenceCode: "HALL-1234", AmountCents: 5000_00}
	u := &model.User{ID: 42, PhoneNumber: "+237670000001"}

	got, err := svc.InitiatePayment(context.Background(), b, u)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPending, got.Status)
	assert.Equal(t, b.ID, got.BookingID)
	assert.Equal(t, int64(5000_00), got.AmountCents)

	require.Len(t, gw.reqs, 1)
	req := gw.reqs[0]
	assert.Equal(t, "+237670000001", req.PhoneNumber)
	assert.Equal(t, float64(5000), req.Amount)
	assert.Equal(t, "XAF", req.CurrencyCode)
	assert.Equal(t, "9", req.Metadata["booking_id"])
	assert.Equal(t, "HALL-1234", req.Metadata["reference"])
	assert.Empty(t, tx.failed)
}

func TestInitiatePaymentGatewayRejection(t *testing.T) {
	gw := &stubGateway{resp: &CheckoutResponse{Status: "InvalidRequest", Description: "bad product"}}
	tx := newStubTransactions()
	svc := newService(gw, tx, &stubConfirmer{}, nil)

	_, err := svc.InitiatePayment(context.Background(),
		&model.Booking{ID: 9, AmountCents: 100_00}, &model.User{PhoneNumber: "+237670000001"})
	require.ErrorIs(t, err, ErrCheckoutRejected)
	assert.Equal(t, []uint64{1}, tx.failed)
}

func TestInitiatePaymentGatewayError(t *testing.T) {
	gw := &stubGateway{err: errors.New("connection refused")}
	tx := newStubTransactions()
	svc := newService(gw, tx, &stubConfirmer{}, nil)

	_, err := svc.InitiatePayment(context.Background(),
		&model.Booking{ID: 9, AmountCents: 100_00}, &model.User{PhoneNumber: "+237670000001"})
	require.Error(t, err)
	assert.Equal(t, []uint64{1}, tx.failed)
}

func TestCallbackMetadataMatchConfirms(t *testing.T) {
	tx := newStubTransactions()
	pending := &model.Transaction{ID: 5, BookingID: 9, Status: model.TransactionPending}
	tx.pendingByBooking[9] = pending
	eng := &stubConfirmer{}
	n := &stubNotifier{}
	svc := newService(&stubGateway{}, tx, eng, n)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:          "Success",
		TransactionID:   "ATPid_7",
		RequestMetadata: map[string]string{"booking_id": "9"},
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.True(t, res.Confirmed)
	assert.Equal(t, uint64(9), res.BookingID)
	assert.Equal(t, []uint64{5}, tx.succeeded)
	assert.Equal(t, []uint64{9}, eng.confirmed)
	assert.Equal(t, []uint64{9}, n.published)
}

func TestCallbackReferenceFallback(t *testing.T) {
	tx := newStubTransactions()
	tx.pendingByBooking[9] = &model.Transaction{ID: 5, BookingID: 9}
	eng := &stubConfirmer{byRef: map[string]*model.Booking{
		"EVT-4321": {ID: 9},
	}}
	svc := newService(&stubGateway{}, tx, eng, nil)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:        "Completed",
		ClientAccount: "EVT-4321",
	})
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, []uint64{9}, eng.confirmed)
}

func TestCallbackPhoneAmountFallback(t *testing.T) {
	tx := newStubTransactions()
	tx.pendingByPhone["+237670000001"] = &model.Transaction{ID: 5, BookingID: 9, AmountCents: 5000_00}
	eng := &stubConfirmer{}
	svc := newService(&stubGateway{}, tx, eng, nil)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:      "Success",
		PhoneNumber: "+237670000001",
		Value:       "XAF 5000.00",
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, []uint64{9}, eng.confirmed)
}

func TestCallbackDuplicateIsNoOp(t *testing.T) {
	tx := newStubTransactions()
	tx.pendingByBooking[9] = &model.Transaction{ID: 5, BookingID: 9, Status: model.TransactionPending}
	eng := &stubConfirmer{}
	n := &stubNotifier{}
	svc := newService(&stubGateway{}, tx, eng, n)

	payload := &Callback{
		Status:          "Success",
		TransactionID:   "ATPid_7",
		RequestMetadata: map[string]string{"booking_id": "9"},
	}

	first, err := svc.HandleCallback(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, first.Confirmed)

	// The gateway retries the identical payload; the transaction is no
	// longer pending, so nothing matches and nothing runs twice.
	second, err := svc.HandleCallback(context.Background(), payload)
	require.NoError(t, err)
	assert.False(t, second.Matched)
	assert.Equal(t, []uint64{5}, tx.succeeded)
	assert.Equal(t, []uint64{9}, eng.confirmed)
	assert.Equal(t, []uint64{9}, n.published)
}

func TestGetTransactionForUserHidesForeignRows(t *testing.T) {
	tx := newStubTransactions()
	require.NoError(t, tx.Create(context.Background(), &model.Transaction{BookingID: 9}))
	eng := &stubConfirmer{byID: map[uint64]*model.Booking{9: {ID: 9, UserID: 42}}}
	svc := newService(&stubGateway{}, tx, eng, nil)

	got, err := svc.GetTransactionForUser(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.BookingID)

	_, err = svc.GetTransactionForUser(context.Background(), 1, 7)
	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)
}

func TestCallbackUnmatchedIsAcknowledged(t *testing.T) {
	svc := newService(&stubGateway{}, newStubTransactions(), &stubConfirmer{}, nil)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:      "Success",
		PhoneNumber: "+237699999999",
		Value:       "XAF 12.00",
	})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestCallbackFailureLeavesHoldPending(t *testing.T) {
	tx := newStubTransactions()
	tx.pendingByBooking[9] = &model.Transaction{ID: 5, BookingID: 9}
	eng := &stubConfirmer{}
	svc := newService(&stubGateway{}, tx, eng, nil)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:          "Failed",
		RequestMetadata: map[string]string{"booking_id": "9"},
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.False(t, res.Confirmed)
	assert.Equal(t, []uint64{5}, tx.failed)
	assert.Empty(t, eng.confirmed)
	assert.Empty(t, eng.cancelled)
}

func TestCallbackExhaustedSlotsCancelsAndFlagsRefund(t *testing.T) {
	tx := newStubTransactions()
	tx.pendingByBooking[9] = &model.Transaction{ID: 5, BookingID: 9}
	eng := &stubConfirmer{confirmErr: booking.ErrResourceUnavailable}
	n := &stubNotifier{}
	svc := newService(&stubGateway{}, tx, eng, n)

	res, err := svc.HandleCallback(context.Background(), &Callback{
		Status:          "Success",
		RequestMetadata: map[string]string{"booking_id": "9"},
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.False(t, res.Confirmed)
	assert.Equal(t, []uint64{9}, eng.cancelled)
	assert.Empty(t, n.published)
}

func TestParseValueCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"XAF 5000.00", 5000_00, true},
		{"KES 1,250.50", 1250_50, true},
		{"5000", 5000_00, true},
		{"12.5", 12_50, true},
		{"XAF", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseValueCents(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}
