package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tanefack/community-booking/internal/model"
)

// TransactionRepo provides data access to the `transactions` table.
// The pending-status filters on the lookup queries are load-bearing:
// a callback for an already-resolved transaction simply finds nothing,
// which is how duplicate gateway callbacks degrade to a no-op.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, booking_id, phone_number, amount_cents, provider_transaction_id, status, provider_response, created_at, updated_at`

func scanTransaction(scan func(dest ...any) error) (*model.Transaction, error) {
	var (
		t          model.Transaction
		providerID sql.NullString
		response   []byte
	)
	if err := scan(&t.ID, &t.BookingID, &t.PhoneNumber, &t.AmountCents, &providerID,
		&t.Status, &response, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if providerID.Valid {
		v := providerID.String
		t.ProviderTransactionID = &v
	}
	t.ProviderResponse = response
	return &t, nil
}

// Create inserts a pending transaction row and populates its ID.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions (booking_id, phone_number, amount_cents, status) VALUES (?,?,?,?)",
		t.BookingID, t.PhoneNumber, t.AmountCents, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a transaction by id.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// SaveProviderResponse stores the latest raw gateway payload on the
// transaction for audit.  The blob is opaque; nothing reads it back
// programmatically.
func (r *TransactionRepo) SaveProviderResponse(ctx context.Context, id uint64, raw []byte) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET provider_response = ? WHERE id = ?", raw, id)
	return err
}

// MarkSuccess resolves the transaction as successful, recording the
// provider-assigned id and the raw callback payload.
func (r *TransactionRepo) MarkSuccess(ctx context.Context, id uint64, providerID string, raw []byte) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET status = 'success', provider_transaction_id = ?, provider_response = ? WHERE id = ?",
		providerID, raw, id)
	return err
}

// MarkFailed resolves the transaction as failed, keeping the raw
// payload (or error description) that explains why.
func (r *TransactionRepo) MarkFailed(ctx context.Context, id uint64, raw []byte) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET status = 'failed', provider_response = ? WHERE id = ?", raw, id)
	return err
}

// FindPendingByBooking returns the unique pending transaction for a
// booking, or ErrTransactionNotFound.  Callback matching strategy 1.
func (r *TransactionRepo) FindPendingByBooking(ctx context.Context, bookingID uint64) (*model.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE booking_id = ? AND status = 'pending' LIMIT 1",
		bookingID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}

// FindPendingByPhoneAmount returns the most recent pending transaction
// matching phone number and amount.  Callback matching strategy 2,
// used when the gateway omits our correlation metadata.
func (r *TransactionRepo) FindPendingByPhoneAmount(ctx context.Context, phone string, amountCents int64) (*model.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE phone_number = ? AND amount_cents = ? AND status = 'pending'
		 ORDER BY created_at DESC LIMIT 1`,
		phone, amountCents)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return t, err
}
