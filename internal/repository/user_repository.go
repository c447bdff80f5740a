package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tanefack/community-booking/internal/model"
)

// UserRepo provides data access to the `users` table.  The phone
// number is unique and is the identity key shared by the web and USSD
// channels; email is unique when present.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, name, phone_number, email, password_hash, pin_hash, is_admin, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u            model.User
		email        sql.NullString
		passwordHash sql.NullString
		pinHash      sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.PhoneNumber, &email, &passwordHash, &pinHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if email.Valid {
		v := email.String
		u.Email = &v
	}
	if passwordHash.Valid {
		v := passwordHash.String
		u.PasswordHash = &v
	}
	if pinHash.Valid {
		v := pinHash.String
		u.PinHash = &v
	}
	return &u, nil
}

// Create inserts a web-registered user with name, phone, email and a
// bcrypt password hash, returning the new id.  Duplicate email or
// phone rows are reported with the matching sentinel error.
func (r *UserRepo) Create(ctx context.Context, name, phone, email, passwordHash string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, phone_number, email, password_hash) VALUES (?,?,?,?)",
		name, phone, email, passwordHash)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "phone") {
				return 0, ErrPhoneExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpsertByPhone creates or updates the user identified by phone,
// setting name and the bcrypt PIN hash.  This is the USSD registration
// path: a user that already exists (registered over web) simply gains
// a PIN.  It returns the stored user.
func (r *UserRepo) UpsertByPhone(ctx context.Context, phone, name, pinHash string) (*model.User, error) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (name, phone_number, pin_hash) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE name = VALUES(name), pin_hash = VALUES(pin_hash)`,
		name, phone, pinHash)
	if err != nil {
		return nil, err
	}
	return r.GetByPhone(ctx, phone)
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone_number=? LIMIT 1", phone))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}
