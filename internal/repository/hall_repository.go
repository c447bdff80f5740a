package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tanefack/community-booking/internal/model"
)

// HallRepo provides read access to the `halls` table.  Halls are
// read-mostly catalog records; availability is derived from the
// bookings ledger, so the only write concern here is the row lock the
// booking engine takes before inserting a competing booking.
type HallRepo struct {
	db *sql.DB
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo { return &HallRepo{db: db} }

const hallColumns = `id, name, description, capacity, price_per_hour_cents, is_active, created_at, updated_at`

func scanHall(scan func(dest ...any) error) (*model.Hall, error) {
	var (
		h    model.Hall
		desc sql.NullString
	)
	if err := scan(&h.ID, &h.Name, &desc, &h.Capacity, &h.PricePerHourCents, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		v := desc.String
		h.Description = &v
	}
	return &h, nil
}

// GetByID retrieves a hall by its ID.  It returns ErrHallNotFound when
// no row exists.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+hallColumns+" FROM halls WHERE id = ?", id)
	h, err := scanHall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHallNotFound
	}
	return h, err
}

// GetForUpdateTx loads a hall inside the given transaction with an
// exclusive row lock.  The booking engine takes this lock before
// re-checking availability so that two concurrent bookings for the
// same hall serialize on the row.
func (r *HallRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Hall, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+hallColumns+" FROM halls WHERE id = ? FOR UPDATE", id)
	h, err := scanHall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHallNotFound
	}
	return h, err
}

// ListActive returns active halls ordered by name, offset/limit
// paginated.  The USSD browse screen passes limit = page size + 1 to
// detect whether a next page exists without a count query.
func (r *HallRepo) ListActive(ctx context.Context, offset, limit int) ([]model.Hall, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+hallColumns+" FROM halls WHERE is_active = 1 ORDER BY name LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	halls := make([]model.Hall, 0, limit)
	for rows.Next() {
		h, err := scanHall(rows.Scan)
		if err != nil {
			return nil, err
		}
		halls = append(halls, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return halls, nil
}
