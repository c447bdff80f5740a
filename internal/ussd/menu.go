// Package ussd implements the menu state machine behind the USSD
// webhook.  USSD is stateless: every keystroke is an independent HTTP
// request carrying the full *-joined input history, so the machine
// reconstructs where the caller is from the persisted session and
// dispatches only the newest input segment.  Screens are prefixed CON
// to keep the session open or END to terminate it.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tanefack/community-booking/internal/booking"
	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
	"github.com/tanefack/community-booking/internal/utils"
)

// Menu state names stored in UssdSession.CurrentMenu.  Unknown or
// missing states fall back to menuMain.
const (
	menuMain           = "main"
	menuRegister       = "register"
	menuBrowseHalls    = "browse_halls"
	menuBrowseEvents   = "browse_events"
	menuSelectDate     = "select_date"
	menuSelectTime     = "select_time"
	menuEnterPin       = "enter_pin"
	menuConfirmBooking = "confirm_booking"
	menuMyBookings     = "my_bookings"
)

// hallPageSize is the number of halls shown per browse screen.  Kept
// small because a USSD screen is capped at 160 characters.
const hallPageSize = 3

// eventListLimit caps the single-screen event listing.
const eventListLimit = 5

var (
	dateRe = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
	pinRe  = regexp.MustCompile(`^\d{4}$`)
)

// SessionStore loads and persists session state between keystrokes.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*model.UssdSession, error)
	Save(ctx context.Context, sess *model.UssdSession) error
}

// HallCatalog supplies the paginated hall listing and point lookups.
type HallCatalog interface {
	ListActive(ctx context.Context, offset, limit int) ([]model.Hall, error)
	GetByID(ctx context.Context, id uint64) (*model.Hall, error)
}

// EventCatalog supplies the open-event listing and point lookups.
type EventCatalog interface {
	ListOpen(ctx context.Context, limit int) ([]model.Event, error)
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// UserDirectory resolves and registers users by phone number.
type UserDirectory interface {
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	UpsertByPhone(ctx context.Context, phone, name, pinHash string) (*model.User, error)
}

// Engine is the slice of the booking engine the menu needs: creating
// the hold at the terminal confirm step.
type Engine interface {
	CreateBooking(ctx context.Context, user *model.User, rt model.ResourceType, resourceID uint64, p booking.CreateParams) (*model.Booking, error)
}

// Payments starts the STK push for a freshly created hold.
type Payments interface {
	InitiatePayment(ctx context.Context, b *model.Booking, u *model.User) (*model.Transaction, error)
}

// Historian delivers the caller's booking history out of band (SMS);
// fire-and-forget from the menu's perspective.
type Historian interface {
	SendBookingHistory(ctx context.Context, u *model.User)
}

// Machine routes (session state, raw input) to a handler state and
// returns the next screen.  Handlers are pure over their inputs apart
// from mutating the in-memory session, which Handle persists exactly
// once per request; every handler performs at most a small constant
// number of store round trips to stay inside the 2-second budget.
type Machine struct {
	sessions SessionStore
	halls    HallCatalog
	events   EventCatalog
	users    UserDirectory
	engine   Engine
	payments Payments
	history  Historian

	bcryptCost int // cost for hashing freshly registered PINs
}

// NewMachine wires the menu state machine.  history and payments may
// be nil in tests; everything else is required.
func NewMachine(sessions SessionStore, halls HallCatalog, events EventCatalog, users UserDirectory, engine Engine, payments Payments, history Historian, bcryptCost int) *Machine {
	if sessions == nil || halls == nil || events == nil || users == nil || engine == nil {
		panic("nil dependency passed to ussd.NewMachine")
	}
	return &Machine{
		sessions: sessions, halls: halls, events: events, users: users,
		engine: engine, payments: payments, history: history, bcryptCost: bcryptCost,
	}
}

// Handle is the single entry point called by the webhook handler.
// text is the provider's *-joined accumulation of everything typed in
// this session; only the final segment is new, the rest is resent
// history and must not be replayed.
func (m *Machine) Handle(ctx context.Context, sessionID, phoneNumber, text string) (string, error) {
	sess, err := m.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	// The store's TTL normally evicts stale sessions; the deadline
	// check catches one served in the window between expiry and
	// eviction, which must restart at the main menu.
	if sess != nil && sess.IsExpired(time.Now().UTC()) {
		sess = nil
	}
	if sess == nil {
		sess = &model.UssdSession{
			SessionID:   sessionID,
			PhoneNumber: phoneNumber,
			CurrentMenu: menuMain,
			MenuData:    map[string]string{},
		}
	}

	input := lastSegment(text)
	sess.LastInput = input

	screen := m.route(ctx, sess, input, phoneNumber)
	if err := m.sessions.Save(ctx, sess); err != nil {
		return "", err
	}
	return screen, nil
}

// lastSegment extracts the newest input from the provider's *-joined
// history; empty text means the initial dial.
func lastSegment(text string) string {
	if text == "" {
		return ""
	}
	parts := strings.Split(text, "*")
	return parts[len(parts)-1]
}

func (m *Machine) route(ctx context.Context, sess *model.UssdSession, input, phone string) string {
	switch sess.CurrentMenu {
	case menuMain:
		return m.mainMenu(ctx, sess, input, phone)
	case menuRegister:
		return m.registerMenu(ctx, sess, input, phone)
	case menuBrowseHalls:
		return m.browseHallsMenu(ctx, sess, input)
	case menuBrowseEvents:
		return m.browseEventsMenu(ctx, sess, input)
	case menuSelectDate:
		return m.selectDateMenu(sess, input)
	case menuSelectTime:
		return m.selectTimeMenu(sess, input)
	case menuEnterPin:
		return m.enterPinMenu(ctx, sess, input, phone)
	case menuConfirmBooking:
		return m.confirmBookingMenu(ctx, sess, input, phone)
	case menuMyBookings:
		return m.myBookingsMenu(ctx, sess, phone)
	default:
		sess.CurrentMenu = menuMain
		return m.mainMenu(ctx, sess, "", phone)
	}
}

const mainScreen = "CON Welcome to Community Booking\n1. Browse Halls\n2. Browse Events\n3. My Bookings\n4. Register"

func (m *Machine) mainMenu(ctx context.Context, sess *model.UssdSession, input, phone string) string {
	if input == "" {
		sess.UpdateState(menuMain, nil)
		return mainScreen
	}
	switch input {
	case "1":
		sess.UpdateState(menuBrowseHalls, map[string]string{"page": "1"})
		return m.renderHallPage(ctx, sess, "")
	case "2":
		sess.UpdateState(menuBrowseEvents, nil)
		return m.renderEventList(ctx, sess, "")
	case "3":
		return m.myBookingsMenu(ctx, sess, phone)
	case "4":
		sess.UpdateState(menuRegister, map[string]string{"step": "name"})
		return "CON Enter your full name:"
	default:
		return "CON Invalid option. Try again:\n1. Halls\n2. Events\n3. My Bookings\n4. Register"
	}
}

// registerMenu walks the three registration steps keyed by the "step"
// scratch field.  A confirmation mismatch loops back to the pin step
// (not confirm_pin) so the caller re-creates the PIN from scratch.
func (m *Machine) registerMenu(ctx context.Context, sess *model.UssdSession, input, phone string) string {
	switch sess.Data("step", "") {
	case "name":
		if strings.TrimSpace(input) == "" {
			return "CON Enter your full name:"
		}
		sess.SetData("name", input)
		sess.UpdateState(menuRegister, map[string]string{"step": "pin"})
		return "CON Create 4-digit PIN:"

	case "pin":
		if !pinRe.MatchString(input) {
			return "CON PIN must be 4 digits. Try again:"
		}
		sess.SetData("pin", input)
		sess.UpdateState(menuRegister, map[string]string{"step": "confirm_pin"})
		return "CON Confirm your PIN:"

	case "confirm_pin":
		if input != sess.Data("pin", "") {
			sess.UpdateState(menuRegister, map[string]string{"step": "pin"})
			return "CON PINs don't match. Create PIN again:"
		}
		pinHash, err := utils.HashPassword(input, m.bcryptCost)
		if err != nil {
			return "END Error in registration. Please try again."
		}
		user, err := m.users.UpsertByPhone(ctx, phone, sess.Data("name", ""), pinHash)
		if err != nil {
			return "END Error in registration. Please try again."
		}
		return fmt.Sprintf("END Registration successful! Welcome %s.", user.Name)
	}
	return "END Error in registration. Please try again."
}

// browseHallsMenu pages through active halls three at a time.  One
// extra row is fetched to learn whether a next page exists without a
// count query; 9 advances, 0 goes back, 1..3 select by position.
func (m *Machine) browseHallsMenu(ctx context.Context, sess *model.UssdSession, input string) string {
	page := atoiDefault(sess.Data("page", "1"), 1)
	halls, err := m.halls.ListActive(ctx, (page-1)*hallPageSize, hallPageSize+1)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if len(halls) == 0 {
		return "END No halls available at the moment."
	}
	hasNext := len(halls) > hallPageSize

	if input == "" {
		return m.renderHallPage(ctx, sess, "")
	}
	if input == "9" && hasNext {
		sess.SetData("page", strconv.Itoa(page+1))
		return m.renderHallPage(ctx, sess, "")
	}
	if input == "0" && page > 1 {
		sess.SetData("page", strconv.Itoa(page-1))
		return m.renderHallPage(ctx, sess, "")
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= hallPageSize && n <= len(halls) {
		selected := halls[n-1]
		sess.SetData("hall_id", strconv.FormatUint(selected.ID, 10))
		sess.UpdateState(menuSelectDate, nil)
		return "CON Enter date (DD-MM-YYYY):"
	}
	return m.renderHallPage(ctx, sess, "Invalid selection.\n")
}

// renderHallPage draws the current hall page, optionally prefixed by
// an error line (re-shown after invalid input).
func (m *Machine) renderHallPage(ctx context.Context, sess *model.UssdSession, prefix string) string {
	page := atoiDefault(sess.Data("page", "1"), 1)
	halls, err := m.halls.ListActive(ctx, (page-1)*hallPageSize, hallPageSize+1)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if len(halls) == 0 {
		return "END No halls available at the moment."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CON %sAvailable Halls (Page %d):\n", prefix, page)
	shown := halls
	if len(shown) > hallPageSize {
		shown = shown[:hallPageSize]
	}
	for i, h := range shown {
		fmt.Fprintf(&b, "%d. %s - %s/hr\n", i+1, h.Name, formatAmount(h.PricePerHourCents))
	}
	if len(halls) > hallPageSize {
		b.WriteString("9. Next\n")
	}
	if page > 1 {
		b.WriteString("0. Back")
	}
	return strings.TrimRight(b.String(), "\n")
}

// browseEventsMenu shows the first few open events on a single screen.
func (m *Machine) browseEventsMenu(ctx context.Context, sess *model.UssdSession, input string) string {
	events, err := m.events.ListOpen(ctx, eventListLimit)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if len(events) == 0 {
		return "END No upcoming events available."
	}
	if input == "" {
		return m.renderEventList(ctx, sess, "")
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(events) {
		selected := events[n-1]
		sess.SetData("event_id", strconv.FormatUint(selected.ID, 10))
		sess.UpdateState(menuEnterPin, nil)
		return "CON Enter your 4-digit PIN:"
	}
	return m.renderEventList(ctx, sess, "Invalid selection.\n")
}

func (m *Machine) renderEventList(ctx context.Context, sess *model.UssdSession, prefix string) string {
	events, err := m.events.ListOpen(ctx, eventListLimit)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if len(events) == 0 {
		return "END No upcoming events available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CON %sUpcoming Events:\n", prefix)
	for i, e := range events {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, e.Name, formatAmount(e.TicketPriceCents))
	}
	return strings.TrimRight(b.String(), "\n")
}

// selectDateMenu validates the strict DD-MM-YYYY format and re-prompts
// on mismatch without advancing; the session timeout is the only bound
// on retries.
func (m *Machine) selectDateMenu(sess *model.UssdSession, input string) string {
	if !dateRe.MatchString(input) {
		return "CON Invalid format. Enter date (DD-MM-YYYY):"
	}
	sess.SetData("date", input)
	sess.UpdateState(menuSelectTime, map[string]string{"step": "start"})
	return "CON Enter start time (HH:MM):"
}

// selectTimeMenu collects the interval in two steps: a strict HH:MM
// start time, then a whole-hour duration from which the exclusive end
// time is derived.
func (m *Machine) selectTimeMenu(sess *model.UssdSession, input string) string {
	switch sess.Data("step", "start") {
	case "start":
		if !timeRe.MatchString(input) {
			return "CON Invalid format. Enter time (HH:MM):"
		}
		sess.SetData("start_time", input)
		sess.UpdateState(menuSelectTime, map[string]string{"step": "duration"})
		return "CON Enter duration (hours):"

	default: // duration
		hours, err := strconv.Atoi(input)
		if err != nil || hours < 1 || hours > 12 {
			return "CON Enter duration in hours (1-12):"
		}
		end, ok := addHours(sess.Data("start_time", ""), hours)
		if !ok {
			return "CON Booking must end same day. Enter duration (hours):"
		}
		sess.SetData("end_time", end)
		sess.UpdateState(menuEnterPin, nil)
		return "CON Enter your 4-digit PIN:"
	}
}

// enterPinMenu authorizes the booking with the user's 4-digit PIN.  A
// mismatch terminates the session outright: forcing a fresh dial is a
// deliberate anti-bruteforce friction, not a retry bug.
func (m *Machine) enterPinMenu(ctx context.Context, sess *model.UssdSession, input, phone string) string {
	user, err := m.lookupUser(ctx, phone)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if user == nil || !user.HasPin() {
		return "END Please register first by dialing the service code and selecting option 4."
	}
	if !utils.VerifyPassword(*user.PinHash, input) {
		return "END Invalid PIN. Transaction cancelled."
	}
	sess.UpdateState(menuConfirmBooking, nil)
	return m.confirmBookingMenu(ctx, sess, "", phone)
}

// confirmBookingMenu shows the summary screen and, on confirmation,
// creates the hold through the booking engine and fires the STK push.
func (m *Machine) confirmBookingMenu(ctx context.Context, sess *model.UssdSession, input, phone string) string {
	if input == "" {
		return m.renderSummary(ctx, sess)
	}
	if input != "1" {
		return "END Booking cancelled."
	}

	user, err := m.lookupUser(ctx, phone)
	if err != nil || user == nil {
		return "END An error occurred. Please try again."
	}
	b, screen := m.createFromSession(ctx, sess, user)
	if b == nil {
		return screen
	}
	if m.payments != nil {
		if _, err := m.payments.InitiatePayment(ctx, b, user); err != nil {
			// The hold stays pending and will expire unpaid.
			return "END Could not start payment. Please try again later."
		}
	}
	return "END Please check your phone for payment prompt."
}

func (m *Machine) renderSummary(ctx context.Context, sess *model.UssdSession) string {
	if hallID := sess.Data("hall_id", ""); hallID != "" {
		hall, err := m.halls.GetByID(ctx, parseID(hallID))
		if err != nil {
			return "END An error occurred. Please try again."
		}
		return fmt.Sprintf("CON Confirm Booking:\n%s\nDate: %s\n%s-%s\n1. Confirm\n2. Cancel",
			hall.Name, sess.Data("date", ""), sess.Data("start_time", ""), sess.Data("end_time", ""))
	}
	eventID := sess.Data("event_id", "")
	if eventID == "" {
		return "END An error occurred. Please try again."
	}
	event, err := m.events.GetByID(ctx, parseID(eventID))
	if err != nil {
		return "END An error occurred. Please try again."
	}
	return fmt.Sprintf("CON Confirm Booking:\n%s\n1 ticket - %s\n1. Confirm\n2. Cancel",
		event.Name, formatAmount(event.TicketPriceCents))
}

// createFromSession turns the collected scratch data into an engine
// call.  Returns the booking on success, or a terminal screen.
func (m *Machine) createFromSession(ctx context.Context, sess *model.UssdSession, user *model.User) (*model.Booking, string) {
	if hallID := sess.Data("hall_id", ""); hallID != "" {
		date, ok := toISODate(sess.Data("date", ""))
		if !ok {
			return nil, "END An error occurred. Please try again."
		}
		b, err := m.engine.CreateBooking(ctx, user, model.ResourceHall, parseID(hallID), booking.CreateParams{
			Date:      date,
			StartTime: sess.Data("start_time", ""),
			EndTime:   sess.Data("end_time", ""),
			Source:    model.SourceUSSD,
		})
		return b, createErrorScreen(err)
	}
	if eventID := sess.Data("event_id", ""); eventID != "" {
		events, err := m.events.GetByID(ctx, parseID(eventID))
		if err != nil {
			return nil, "END An error occurred. Please try again."
		}
		b, err := m.engine.CreateBooking(ctx, user, model.ResourceEvent, events.ID, booking.CreateParams{
			Date:     events.EventDate,
			Quantity: 1,
			Source:   model.SourceUSSD,
		})
		return b, createErrorScreen(err)
	}
	return nil, "END An error occurred. Please try again."
}

func createErrorScreen(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, booking.ErrResourceUnavailable):
		return "END Sorry, this slot is no longer available."
	default:
		return "END An error occurred. Please try again."
	}
}

// myBookingsMenu terminates with an SMS dispatch: the history does not
// fit a USSD screen, so it is delivered out of band.
func (m *Machine) myBookingsMenu(ctx context.Context, sess *model.UssdSession, phone string) string {
	user, err := m.lookupUser(ctx, phone)
	if err != nil {
		return "END An error occurred. Please try again."
	}
	if user == nil {
		return "END Please register first."
	}
	if m.history != nil {
		m.history.SendBookingHistory(ctx, user)
	}
	return "END Your booking history has been sent via SMS."
}

// lookupUser resolves a phone to a user, mapping not-found to nil.
func (m *Machine) lookupUser(ctx context.Context, phone string) (*model.User, error) {
	user, err := m.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}

func parseID(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}

// formatAmount renders cents as whole currency units for the cramped
// USSD screen.
func formatAmount(cents int64) string {
	return fmt.Sprintf("FCFA %d", cents/100)
}

// addHours derives the exclusive end time from an HH:MM start and a
// whole-hour duration; ok is false when the interval would cross
// midnight.
func addHours(start string, hours int) (string, bool) {
	if !timeRe.MatchString(start) {
		return "", false
	}
	h := atoiDefault(start[:2], 0)*60 + atoiDefault(start[3:], 0)
	end := h + hours*60
	if end > 24*60 {
		return "", false
	}
	if end == 24*60 {
		return "23:59", true // clamp: intervals are same-day
	}
	return fmt.Sprintf("%02d:%02d", end/60, end%60), true
}

// toISODate converts the USSD DD-MM-YYYY entry to the ledger's
// YYYY-MM-DD form.
func toISODate(s string) (string, bool) {
	if !dateRe.MatchString(s) {
		return "", false
	}
	return s[6:] + "-" + s[3:5] + "-" + s[:2], true
}
