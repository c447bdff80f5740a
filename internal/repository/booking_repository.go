package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tanefack/community-booking/internal/model"
)

// BookingRepo provides data access to the `bookings` ledger.  Writes
// that participate in the engine's critical sections are exposed as
// ...Tx variants taking an existing transaction; the caller owns
// commit and rollback.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, resource_type, resource_id, booking_date, start_time, end_time,
	quantity, amount_cents, status, reference_code, hold_expires_at, confirmed_at, source, created_at, updated_at`

func scanBooking(scan func(dest ...any) error) (*model.Booking, error) {
	var (
		b             model.Booking
		start, end    sql.NullString
		holdExpiresAt sql.NullTime
		confirmedAt   sql.NullTime
	)
	if err := scan(&b.ID, &b.UserID, &b.ResourceType, &b.ResourceID, &b.BookingDate, &start, &end,
		&b.Quantity, &b.AmountCents, &b.Status, &b.ReferenceCode, &holdExpiresAt, &confirmedAt,
		&b.Source, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if start.Valid {
		v := start.String
		b.StartTime = &v
	}
	if end.Valid {
		v := end.String
		b.EndTime = &v
	}
	if holdExpiresAt.Valid {
		t := holdExpiresAt.Time
		b.HoldExpiresAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	return &b, nil
}

// InsertTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID on the model.  The
// engine calls this after re-validating availability under the
// resource row lock.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
		(user_id, resource_type, resource_id, booking_date, start_time, end_time,
		 quantity, amount_cents, status, reference_code, hold_expires_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.UserID, b.ResourceType, b.ResourceID, b.BookingDate, b.StartTime, b.EndTime,
		b.Quantity, b.AmountCents, b.Status, b.ReferenceCode, b.HoldExpiresAt, b.Source)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// OverlapExistsTx reports whether any pending or confirmed booking for
// the hall on the given date intersects the half-open interval
// [start, end).  Touching endpoints do not overlap.  It must run in
// the same transaction as the insert that depends on it, after the
// hall row lock has been acquired, to close the check-then-act race.
func (r *BookingRepo) OverlapExistsTx(ctx context.Context, tx *sql.Tx, hallID uint64, date, start, end string) (bool, error) {
	rows, err := tx.QueryContext(ctx, overlapCandidatesQuery, hallID, date)
	if err != nil {
		return false, err
	}
	return anyOverlap(rows, start, end)
}

// OverlapExists is the read-only variant of OverlapExistsTx, used by
// the catalog availability predicate outside any write transaction.
func (r *BookingRepo) OverlapExists(ctx context.Context, hallID uint64, date, start, end string) (bool, error) {
	rows, err := r.db.QueryContext(ctx, overlapCandidatesQuery, hallID, date)
	if err != nil {
		return false, err
	}
	return anyOverlap(rows, start, end)
}

// The candidate set is every live booking of one hall on one date, a
// handful of rows at most, so the interval comparison runs in Go
// through model.Overlaps rather than duplicating the half-open rule
// in SQL.
const overlapCandidatesQuery = `SELECT start_time, end_time FROM bookings
	WHERE resource_type = 'hall' AND resource_id = ? AND booking_date = ?
	  AND status IN ('pending', 'confirmed')`

func anyOverlap(rows *sql.Rows, start, end string) (bool, error) {
	defer rows.Close()
	for rows.Next() {
		var s, e string
		if err := rows.Scan(&s, &e); err != nil {
			return false, err
		}
		if model.Overlaps(s, e, start, end) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForUpdateTx loads a booking with an exclusive row lock.  Confirm,
// cancel and the expiry sweep all serialize on this lock so a booking
// being confirmed cannot simultaneously be swept.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id)
	b, err := scanBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ConfirmTx flips a booking to confirmed, stamps confirmed_at and
// clears the hold expiry.  Clearing hold_expires_at is what makes the
// expiry sweep's filter skip the row.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64, confirmedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'confirmed', confirmed_at = ?, hold_expires_at = NULL WHERE id = ?`,
		confirmedAt.UTC(), id)
	return err
}

// CancelTx flips a booking to cancelled.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'cancelled' WHERE id = ?`, id)
	return err
}

// ExpireHolds transitions every pending booking whose hold deadline
// has passed to expired and returns how many rows changed.  A single
// conditional UPDATE keeps the sweep idempotent and safe to run
// concurrently with confirm: a booking confirmed an instant earlier no
// longer matches the status filter.
func (r *BookingRepo) ExpireHolds(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'expired'
		 WHERE status = 'pending' AND hold_expires_at < UTC_TIMESTAMP()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByReference fetches a booking by its human-readable reference
// code; used for offline verification at the venue entrance.
func (r *BookingRepo) GetByReference(ctx context.Context, code string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE reference_code = ? LIMIT 1", code)
	b, err := scanBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ReferenceExistsTx reports whether a reference code is already taken.
// The check spans all bookings regardless of resource type, matching
// the collision scope of the code generator.
func (r *BookingRepo) ReferenceExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM bookings WHERE reference_code = ?)", code).Scan(&exists)
	return exists, err
}

// ListByUser returns the user's bookings newest first, capped at limit.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
