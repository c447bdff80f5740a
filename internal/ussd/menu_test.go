package ussd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
	"github.com/tanefack/community-booking/internal/utils"
)

// ----- stubs -----

type stubSessions struct {
	m map[string]*model.UssdSession
}

func newStubSessions() *stubSessions {
	return &stubSessions{m: map[string]*model.UssdSession{}}
}

func (s *stubSessions) Load(_ context.Context, id string) (*model.UssdSession, error) {
	return s.m[id], nil
}

func (s *stubSessions) Save(_ context.Context, sess *model.UssdSession) error {
	sess.ExpiresAt = time.Now().Add(3 * time.Minute)
	s.m[sess.SessionID] = sess
	return nil
}

type stubHalls struct {
	halls []model.Hall
}

func (s *stubHalls) ListActive(_ context.Context, offset, limit int) ([]model.Hall, error) {
	if offset >= len(s.halls) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.halls) {
		end = len(s.halls)
	}
	return s.halls[offset:end], nil
}

func (s *stubHalls) GetByID(_ context.Context, id uint64) (*model.Hall, error) {
	for i := range s.halls {
		if s.halls[i].ID == id {
			return &s.halls[i], nil
		}
	}
	return nil, repository.ErrHallNotFound
}

type stubEvents struct {
	events []model.Event
}

func (s *stubEvents) ListOpen(_ context.Context, limit int) ([]model.Event, error) {
	if limit > len(s.events) {
		limit = len(s.events)
	}
	return s.events[:limit], nil
}

func (s *stubEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i], nil
		}
	}
	return nil, repository.ErrEventNotFound
}

type stubUsers struct {
	byPhone  map[string]*model.User
	upserted []string
}

func (s *stubUsers) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	if u, ok := s.byPhone[phone]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubUsers) UpsertByPhone(_ context.Context, phone, name, pinHash string) (*model.User, error) {
	u := &model.User{ID: uint64(len(s.byPhone) + 1), Name: name, PhoneNumber: phone, PinHash: &pinHash}
	if s.byPhone == nil {
		s.byPhone = map[string]*model.User{}
	}
	s.byPhone[phone] = u
	s.upserted = append(s.upserted, phone)
	return u, nil
}

type stubEngine struct {
	createFn func(ctx context.Context, user *model.User, rt model.ResourceType, resourceID uint64, p booking.CreateParams) (*model.Booking, error)
	calls    []booking.CreateParams
}

func (s *stubEngine) CreateBooking(ctx context.Context, user *model.User, rt model.ResourceType, resourceID uint64, p booking.CreateParams) (*model.Booking, error) {
	s.calls = append(s.calls, p)
	if s.createFn != nil {
		return s.createFn(ctx, user, rt, resourceID, p)
	}
	return &model.Booking{ID: 1, UserID: user.ID, ResourceType: rt, ResourceID: resourceID, Status: model.BookingPending}, nil
}

type stubPayments struct {
	initiated int
	err       error
}

func (s *stubPayments) InitiatePayment(_ context.Context, _ *model.Booking, _ *model.User) (*model.Transaction, error) {
	s.initiated++
	if s.err != nil {
		return nil, s.err
	}
	return &model.Transaction{ID: 1, Status: model.TransactionPending}, nil
}

type stubHistory struct {
	sent int
}

func (s *stubHistory) SendBookingHistory(_ context.Context, _ *model.User) { s.sent++ }

// ----- fixtures -----

const (
	testPhone   = "+237670000001"
	testSession = "ATUid_1"
)

func pinHash(t *testing.T, pin string) *string {
	t.Helper()
	h, err := utils.HashPassword(pin, bcrypt.MinCost)
	require.NoError(t, err)
	return &h
}

type fixture struct {
	machine  *Machine
	sessions *stubSessions
	halls    *stubHalls
	events   *stubEvents
	users    *stubUsers
	engine   *stubEngine
	payments *stubPayments
	history  *stubHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: newStubSessions(),
		halls: &stubHalls{halls: []model.Hall{
			{ID: 1, Name: "Main Hall", PricePerHourCents: 5000_00, IsActive: true},
			{ID: 2, Name: "Garden Hall", PricePerHourCents: 3000_00, IsActive: true},
			{ID: 3, Name: "Conference Room", PricePerHourCents: 2000_00, IsActive: true},
			{ID: 4, Name: "Rooftop", PricePerHourCents: 8000_00, IsActive: true},
		}},
		events: &stubEvents{events: []model.Event{
			{ID: 10, Name: "Jazz Night", EventDate: "2026-09-12", TicketPriceCents: 1500_00, AvailableSlots: 100},
			{ID: 11, Name: "Food Festival", EventDate: "2026-09-20", TicketPriceCents: 500_00, AvailableSlots: 50},
		}},
		users: &stubUsers{byPhone: map[string]*model.User{
			testPhone: {ID: 42, Name: "Amina", PhoneNumber: testPhone, PinHash: pinHash(t, "1234")},
		}},
		engine:   &stubEngine{},
		payments: &stubPayments{},
		history:  &stubHistory{},
	}
	f.machine = NewMachine(f.sessions, f.halls, f.events, f.users, f.engine, f.payments, f.history, bcrypt.MinCost)
	return f
}

// drive replays a keystroke sequence the way the gateway does: each
// request carries the full *-joined history.
func drive(t *testing.T, m *Machine, inputs ...string) string {
	t.Helper()
	screen, err := m.Handle(context.Background(), testSession, testPhone, strings.Join(inputs, "*"))
	require.NoError(t, err)
	return screen
}

// ----- tests -----

func TestMainMenuInitialDial(t *testing.T) {
	f := newFixture(t)
	screen := drive(t, f.machine)
	assert.Equal(t, mainScreen, screen)
	assert.True(t, strings.HasPrefix(screen, "CON "))
}

func TestMainMenuInvalidOption(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	screen := drive(t, f.machine, "7")
	assert.True(t, strings.HasPrefix(screen, "CON Invalid option"))
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	phone := "+237699999999"
	send := func(inputs ...string) string {
		screen, err := f.machine.Handle(context.Background(), "reg-1", phone, strings.Join(inputs, "*"))
		require.NoError(t, err)
		return screen
	}

	send()
	assert.Equal(t, "CON Enter your full name:", send("4"))
	assert.Equal(t, "CON Create 4-digit PIN:", send("4", "Jean Paul"))
	// not four digits
	assert.Equal(t, "CON PIN must be 4 digits. Try again:", send("4", "Jean Paul", "12"))
	assert.Equal(t, "CON Confirm your PIN:", send("4", "Jean Paul", "12", "5678"))
	// mismatch loops back to creating a fresh PIN
	assert.Equal(t, "CON PINs don't match. Create PIN again:", send("4", "Jean Paul", "12", "5678", "0000"))
	assert.Equal(t, "CON Confirm your PIN:", send("4", "Jean Paul", "12", "5678", "0000", "4321"))
	screen := send("4", "Jean Paul", "12", "5678", "0000", "4321", "4321")
	assert.Equal(t, "END Registration successful! Welcome Jean Paul.", screen)

	require.Contains(t, f.users.upserted, phone)
	u := f.users.byPhone[phone]
	require.NotNil(t, u.PinHash)
	assert.True(t, utils.VerifyPassword(*u.PinHash, "4321"))
}

func TestBrowseHallsPagination(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)

	page1 := drive(t, f.machine, "1")
	assert.Contains(t, page1, "Available Halls (Page 1)")
	assert.Contains(t, page1, "1. Main Hall - FCFA 5000/hr")
	assert.Contains(t, page1, "9. Next")
	assert.NotContains(t, page1, "0. Back")

	page2 := drive(t, f.machine, "1", "9")
	assert.Contains(t, page2, "Available Halls (Page 2)")
	assert.Contains(t, page2, "1. Rooftop")
	assert.NotContains(t, page2, "9. Next")
	assert.Contains(t, page2, "0. Back")

	back := drive(t, f.machine, "1", "9", "0")
	assert.Contains(t, back, "Available Halls (Page 1)")
}

func TestBrowseHallsInvalidSelectionReshowsPage(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	drive(t, f.machine, "1")
	screen := drive(t, f.machine, "1", "8")
	assert.Contains(t, screen, "Invalid selection.")
	assert.Contains(t, screen, "Available Halls (Page 1)")
	assert.True(t, strings.HasPrefix(screen, "CON "))
}

func TestHallBookingFullFlow(t *testing.T) {
	f := newFixture(t)
	seq := []string{"1", "2", "14-09-2026", "10:00", "2", "1234"}

	var screen string
	for i := 1; i <= len(seq); i++ {
		screen = drive(t, f.machine, seq[:i]...)
	}
	// PIN accepted leads straight to the summary
	assert.Contains(t, screen, "CON Confirm Booking:")
	assert.Contains(t, screen, "Garden Hall")
	assert.Contains(t, screen, "Date: 14-09-2026")
	assert.Contains(t, screen, "10:00-12:00")

	final := drive(t, f.machine, append(seq, "1")...)
	assert.Equal(t, "END Please check your phone for payment prompt.", final)

	require.Len(t, f.engine.calls, 1)
	p := f.engine.calls[0]
	assert.Equal(t, "2026-09-14", p.Date)
	assert.Equal(t, "10:00", p.StartTime)
	assert.Equal(t, "12:00", p.EndTime)
	assert.Equal(t, model.SourceUSSD, p.Source)
	assert.Equal(t, 1, f.payments.initiated)
}

func TestHallBookingDateAndTimeReprompt(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	drive(t, f.machine, "1")
	drive(t, f.machine, "1", "1")

	assert.Equal(t, "CON Invalid format. Enter date (DD-MM-YYYY):",
		drive(t, f.machine, "1", "1", "2026-09-14"))
	assert.Equal(t, "CON Enter start time (HH:MM):",
		drive(t, f.machine, "1", "1", "2026-09-14", "14-09-2026"))
	assert.Equal(t, "CON Invalid format. Enter time (HH:MM):",
		drive(t, f.machine, "1", "1", "2026-09-14", "14-09-2026", "9am"))
	assert.Equal(t, "CON Enter duration (hours):",
		drive(t, f.machine, "1", "1", "2026-09-14", "14-09-2026", "9am", "09:00"))
	assert.Equal(t, "CON Enter duration in hours (1-12):",
		drive(t, f.machine, "1", "1", "2026-09-14", "14-09-2026", "9am", "09:00", "zero"))
}

func TestEventBookingFlow(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)

	list := drive(t, f.machine, "2")
	assert.Contains(t, list, "Upcoming Events:")
	assert.Contains(t, list, "1. Jazz Night - FCFA 1500")

	assert.Equal(t, "CON Enter your 4-digit PIN:", drive(t, f.machine, "2", "1"))

	summary := drive(t, f.machine, "2", "1", "1234")
	assert.Contains(t, summary, "Jazz Night")
	assert.Contains(t, summary, "1 ticket - FCFA 1500")

	final := drive(t, f.machine, "2", "1", "1234", "1")
	assert.Equal(t, "END Please check your phone for payment prompt.", final)

	require.Len(t, f.engine.calls, 1)
	p := f.engine.calls[0]
	assert.Equal(t, "2026-09-12", p.Date)
	assert.Equal(t, 1, p.Quantity)
}

func TestConfirmBookingDeclined(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	drive(t, f.machine, "2")
	drive(t, f.machine, "2", "1")
	drive(t, f.machine, "2", "1", "1234")

	final := drive(t, f.machine, "2", "1", "1234", "2")
	assert.Equal(t, "END Booking cancelled.", final)
	assert.Empty(t, f.engine.calls)
	assert.Zero(t, f.payments.initiated)
}

func TestConfirmBookingUnavailable(t *testing.T) {
	f := newFixture(t)
	f.engine.createFn = func(context.Context, *model.User, model.ResourceType, uint64, booking.CreateParams) (*model.Booking, error) {
		return nil, booking.ErrResourceUnavailable
	}
	drive(t, f.machine)
	drive(t, f.machine, "2")
	drive(t, f.machine, "2", "1")
	drive(t, f.machine, "2", "1", "1234")

	final := drive(t, f.machine, "2", "1", "1234", "1")
	assert.Equal(t, "END Sorry, this slot is no longer available.", final)
	assert.Zero(t, f.payments.initiated)
}

func TestWrongPinTerminatesSession(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	drive(t, f.machine, "2")
	drive(t, f.machine, "2", "1")

	final := drive(t, f.machine, "2", "1", "9999")
	assert.Equal(t, "END Invalid PIN. Transaction cancelled.", final)
}

func TestUnregisteredUserAtPin(t *testing.T) {
	f := newFixture(t)
	phone := "+237600000000"
	send := func(inputs ...string) string {
		screen, err := f.machine.Handle(context.Background(), "anon-1", phone, strings.Join(inputs, "*"))
		require.NoError(t, err)
		return screen
	}
	send()
	send("2")
	send("2", "1")
	final := send("2", "1", "1234")
	assert.True(t, strings.HasPrefix(final, "END Please register first"))
}

func TestMyBookings(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	final := drive(t, f.machine, "3")
	assert.Equal(t, "END Your booking history has been sent via SMS.", final)
	assert.Equal(t, 1, f.history.sent)
}

func TestMyBookingsUnregistered(t *testing.T) {
	f := newFixture(t)
	screen, err := f.machine.Handle(context.Background(), "anon-2", "+237600000001", "3")
	require.NoError(t, err)
	assert.Equal(t, "END Please register first.", screen)
	assert.Zero(t, f.history.sent)
}

func TestScratchDataSurvivesTransitions(t *testing.T) {
	f := newFixture(t)
	drive(t, f.machine)
	drive(t, f.machine, "1")
	drive(t, f.machine, "1", "1")
	drive(t, f.machine, "1", "1", "14-09-2026")

	sess := f.sessions.m[testSession]
	require.NotNil(t, sess)
	assert.Equal(t, "1", sess.Data("hall_id", ""))
	assert.Equal(t, "14-09-2026", sess.Data("date", ""))
	assert.Equal(t, menuSelectTime, sess.CurrentMenu)
}

func TestLastSegmentExtraction(t *testing.T) {
	assert.Equal(t, "", lastSegment(""))
	assert.Equal(t, "1", lastSegment("1"))
	assert.Equal(t, "1234", lastSegment("1*2*14-09-2026*1234"))
}

func TestAddHours(t *testing.T) {
	end, ok := addHours("10:00", 2)
	require.True(t, ok)
	assert.Equal(t, "12:00", end)

	end, ok = addHours("22:00", 2)
	require.True(t, ok)
	assert.Equal(t, "23:59", end) // clamped to same day

	_, ok = addHours("23:00", 2)
	assert.False(t, ok)
}

func TestExpiredSessionRestartsAtMain(t *testing.T) {
	f := newFixture(t)
	f.sessions.m[testSession] = &model.UssdSession{
		SessionID:   testSession,
		PhoneNumber: testPhone,
		CurrentMenu: menuSelectDate,
		MenuData:    map[string]string{"hall_id": "1"},
		ExpiresAt:   time.Now().Add(-time.Minute),
	}

	// The stale keystroke lands on a fresh main-menu session.
	screen := drive(t, f.machine, "14-09-2026")
	assert.True(t, strings.HasPrefix(screen, "CON Invalid option"))

	sess := f.sessions.m[testSession]
	require.NotNil(t, sess)
	assert.Equal(t, menuMain, sess.CurrentMenu)
	assert.Equal(t, "", sess.Data("hall_id", ""))
}
