package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tanefack/community-booking/internal/model"
	"github.com/tanefack/community-booking/internal/repository"
)

// Engine orchestrates the booking lifecycle against the ledger and
// catalog under transactional isolation.  Every mutator runs a short
// transaction: createBooking locks the target resource row before
// re-validating availability, confirm/cancel lock the booking row so
// the expiry sweep cannot race them.  The hold window is injected at
// construction rather than read from ambient configuration.
type Engine struct {
	db       *sql.DB
	bookings *repository.BookingRepo
	halls    *repository.HallRepo
	events   *repository.EventRepo

	holdWindow time.Duration // pending bookings expire this long after creation
}

// NewEngine constructs the booking engine.  All repositories must be
// non-nil and bound to the same database as db.
func NewEngine(db *sql.DB, bookings *repository.BookingRepo, halls *repository.HallRepo, events *repository.EventRepo, holdWindow time.Duration) *Engine {
	if db == nil || bookings == nil || halls == nil || events == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{db: db, bookings: bookings, halls: halls, events: events, holdWindow: holdWindow}
}

// CreateParams carries the per-request booking details.  Hall bookings
// use Date plus the half-open [StartTime, EndTime) interval; event
// bookings use Quantity (defaulted to 1 when zero).
type CreateParams struct {
	Date      string // "2006-01-02"
	StartTime string // "15:04", halls only
	EndTime   string // "15:04", halls only, exclusive
	Quantity  int    // events only
	Source    model.BookingSource
}

// CreateBooking atomically validates availability and inserts a
// pending hold for the resource.  The resource row is locked for the
// duration of the check plus insert, so two concurrent requests for
// the same hall or event serialize and the loser observes the
// winner's row.  Events are NOT decremented here: the slot counter
// moves only at confirmation, so an event hold does not guarantee
// eventual confirmability (a hall hold does, because the overlap scan
// counts other pending rows).
func (e *Engine) CreateBooking(ctx context.Context, user *model.User, rt model.ResourceType, resourceID uint64, p CreateParams) (*model.Booking, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceType, rt)
	}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrInvalidInterval, p.Date)
	}
	source := p.Source
	if source == "" {
		source = model.SourceWeb
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b := &model.Booking{
		UserID:       user.ID,
		ResourceType: rt,
		ResourceID:   resourceID,
		BookingDate:  p.Date,
		Quantity:     1,
		Status:       model.BookingPending,
		Source:       source,
	}

	switch rt {
	case model.ResourceHall:
		hall, err := e.halls.GetForUpdateTx(ctx, tx, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return nil, ErrResourceNotFound
			}
			return nil, err
		}
		if !hall.IsActive {
			return nil, ErrResourceNotFound
		}
		amount, err := hallAmountCents(p.StartTime, p.EndTime, hall.PricePerHourCents)
		if err != nil {
			return nil, err
		}
		overlap, err := e.bookings.OverlapExistsTx(ctx, tx, resourceID, p.Date, p.StartTime, p.EndTime)
		if err != nil {
			return nil, err
		}
		if overlap {
			return nil, ErrResourceUnavailable
		}
		start, end := p.StartTime, p.EndTime
		b.StartTime = &start
		b.EndTime = &end
		b.AmountCents = amount

	case model.ResourceEvent:
		event, err := e.events.GetForUpdateTx(ctx, tx, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return nil, ErrResourceNotFound
			}
			return nil, err
		}
		if !event.IsActive {
			return nil, ErrResourceNotFound
		}
		if p.Quantity > 0 {
			b.Quantity = p.Quantity
		}
		if !event.HasAvailableSlots(b.Quantity) {
			return nil, ErrResourceUnavailable
		}
		b.AmountCents = int64(b.Quantity) * event.TicketPriceCents
	}

	code, err := e.uniqueReferenceTx(ctx, tx, rt)
	if err != nil {
		return nil, err
	}
	b.ReferenceCode = code
	holdExpiry := time.Now().UTC().Add(e.holdWindow)
	b.HoldExpiresAt = &holdExpiry

	if err := e.bookings.InsertTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// uniqueReferenceTx draws reference codes until one does not collide
// with any existing booking.  Collisions are rare (9000 codes per
// prefix) but the loop is bounded anyway so a full code space cannot
// spin forever.
func (e *Engine) uniqueReferenceTx(ctx context.Context, tx *sql.Tx, rt model.ResourceType) (string, error) {
	for attempt := 0; attempt < 50; attempt++ {
		code, err := GenerateReferenceCode(rt)
		if err != nil {
			return "", err
		}
		exists, err := e.bookings.ReferenceExistsTx(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("reference code space exhausted")
}

// ConfirmBooking transitions a pending booking to confirmed after a
// successful payment.  For event bookings the slot counter is
// committed here via a conditional increment; if the event sold out
// between hold and confirmation the whole transaction rolls back and
// ErrResourceUnavailable is returned, leaving the booking pending to
// expire naturally.  Confirming an already-confirmed booking is a
// no-op so duplicate payment callbacks cannot double-increment slots.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID uint64) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := e.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == model.BookingConfirmed {
		return nil // already confirmed, nothing to do
	}
	if !model.CanTransition(b.Status, model.BookingConfirmed) {
		return fmt.Errorf("%w: %s -> confirmed", ErrInvalidStatus, b.Status)
	}
	if b.ResourceType == model.ResourceEvent {
		if err := e.events.IncrementBookedSlotsTx(ctx, tx, b.ResourceID, b.Quantity); err != nil {
			if errors.Is(err, repository.ErrSlotsExhausted) {
				return ErrResourceUnavailable
			}
			return err
		}
	}
	if err := e.bookings.ConfirmTx(ctx, tx, b.ID, time.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CancelBooking transitions a pending or confirmed booking to
// cancelled.  Cancelling a confirmed event booking releases its slots;
// hall bookings free their interval implicitly by leaving the
// pending/confirmed status set.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint64) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := e.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if !model.CanTransition(b.Status, model.BookingCancelled) {
		return fmt.Errorf("%w: %s -> cancelled", ErrInvalidStatus, b.Status)
	}
	if b.Status == model.BookingConfirmed && b.ResourceType == model.ResourceEvent {
		if err := e.events.DecrementBookedSlotsTx(ctx, tx, b.ResourceID, b.Quantity); err != nil {
			return err
		}
	}
	if err := e.bookings.CancelTx(ctx, tx, b.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ExpireHoldBookings transitions every stale pending hold to expired
// and returns the number of holds released.  Release is eventual, not
// instantaneous: a hold past its deadline stays pending until the next
// sweep runs.
func (e *Engine) ExpireHoldBookings(ctx context.Context) (int64, error) {
	return e.bookings.ExpireHolds(ctx)
}

// FindBookingByReference is a read-only point lookup used for offline
// verification at the venue.
func (e *Engine) FindBookingByReference(ctx context.Context, code string) (*model.Booking, error) {
	return e.bookings.GetByReference(ctx, code)
}

// GetBooking fetches a booking by id.
func (e *Engine) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return e.bookings.GetByID(ctx, id)
}

// HallAvailable reports whether the hall is free for the requested
// half-open interval, considering pending and confirmed bookings.
// Pure read predicate; the binding check happens inside CreateBooking
// under the resource lock.
func (e *Engine) HallAvailable(ctx context.Context, hallID uint64, date, start, end string) (bool, error) {
	if _, err := billableHours(start, end); err != nil {
		return false, err
	}
	hall, err := e.halls.GetByID(ctx, hallID)
	if err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return false, nil
		}
		return false, err
	}
	if !hall.IsActive {
		return false, nil
	}
	overlap, err := e.bookings.OverlapExists(ctx, hallID, date, start, end)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// EventAvailable reports whether the event can still seat the
// requested quantity.  Snapshot read; the binding check happens at
// confirmation time.
func (e *Engine) EventAvailable(ctx context.Context, eventID uint64, quantity int) (bool, error) {
	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return false, nil
		}
		return false, err
	}
	if !event.IsActive {
		return false, nil
	}
	return event.HasAvailableSlots(quantity), nil
}

// parseClock converts a strict zero-padded "HH:MM" string to minutes
// since midnight.  Padding is enforced explicitly because time.Parse
// accepts "9:00", and unpadded values would break the lexicographic
// interval comparisons the overlap queries rely on.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidInterval, s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidInterval, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// billableHours returns the number of chargeable hours for a hall
// interval: partial hours round up, so 09:00-10:30 bills two hours.
// The interval must be non-empty and within a single day.
func billableHours(start, end string) (int, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	if e <= s {
		return 0, fmt.Errorf("%w: %s >= %s", ErrInvalidInterval, start, end)
	}
	return (e - s + 59) / 60, nil
}

// hallAmountCents computes the total price of a hall interval at the
// given hourly rate.
func hallAmountCents(start, end string, pricePerHourCents int64) (int64, error) {
	hours, err := billableHours(start, end)
	if err != nil {
		return 0, err
	}
	return int64(hours) * pricePerHourCents, nil
}
