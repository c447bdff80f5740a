package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tanefack/community-booking/internal/model"
)

// EventRepo provides data access to the `events` table.  Unlike halls,
// events carry a persistent booked_slots counter which only the
// booking engine mutates, via the conditional increment and the
// decrement below.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, description, event_date, start_time, location, ticket_price_cents, available_slots, booked_slots, is_active, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (*model.Event, error) {
	var (
		e    model.Event
		desc sql.NullString
	)
	if err := scan(&e.ID, &e.Name, &desc, &e.EventDate, &e.StartTime, &e.Location,
		&e.TicketPriceCents, &e.AvailableSlots, &e.BookedSlots, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		v := desc.String
		e.Description = &v
	}
	return &e, nil
}

// GetByID retrieves an event by its ID.  It returns ErrEventNotFound
// when no row exists.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// GetForUpdateTx loads an event inside the given transaction with an
// exclusive row lock, serializing concurrent bookings on the row.
func (r *EventRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id)
	e, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// ListOpen returns up to limit active events on today or a future
// date that still have free slots, soonest first.  Both the web
// catalog and the USSD events screen read through this query.
func (r *EventRepo) ListOpen(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE is_active = 1 AND event_date >= CURDATE() AND booked_slots < available_slots
		 ORDER BY event_date, start_time LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// IncrementBookedSlotsTx commits quantity tickets on the event row,
// but only if enough slots remain: the UPDATE is conditional so the
// booked_slots <= available_slots invariant cannot be violated even
// under concurrent confirmations.  Zero affected rows means the event
// sold out between hold creation and confirmation, reported as
// ErrSlotsExhausted so the caller can roll the confirmation back.
func (r *EventRepo) IncrementBookedSlotsTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET booked_slots = booked_slots + ?
		 WHERE id = ? AND booked_slots + ? <= available_slots`,
		quantity, id, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotsExhausted
	}
	return nil
}

// DecrementBookedSlotsTx releases quantity tickets when a confirmed
// event booking is cancelled.  GREATEST floors the counter at zero in
// case of bookkeeping drift.
func (r *EventRepo) DecrementBookedSlotsTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE events SET booked_slots = GREATEST(booked_slots - ?, 0) WHERE id = ?",
		quantity, id)
	return err
}
