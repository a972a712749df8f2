package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, email, name, password_hash, balance, status, lat, lng, completed_exchanges, webhook_url, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user into the database.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, email, name, password_hash, balance, status, lat, lng, completed_exchanges, webhook_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var lat, lng *float64
	if u.Location != nil {
		lat, lng = &u.Location.Lat, &u.Location.Lng
	}

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Balance, u.Status,
		lat, lng, u.CompletedExchanges, u.WebhookURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ports.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by its UUID (without locking).
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByIDForUpdate fetches a user with pessimistic locking.
// This MUST be called within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	u, err := scanUser(tx.QueryRow(ctx, query, id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.LockNotAvailable {
			return nil, ports.ErrLockNotAvailable
		}
		return nil, err
	}
	return u, nil
}

// UpdateLocation updates the user's last known coordinates.
func (r *UserRepo) UpdateLocation(ctx context.Context, id uuid.UUID, location domain.Point) error {
	query := `UPDATE users SET lat = $1, lng = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, location.Lat, location.Lng, id)
	if err != nil {
		return fmt.Errorf("update user location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// UpdateWebhookURL updates the user's notification endpoint.
func (r *UserRepo) UpdateWebhookURL(ctx context.Context, id uuid.UUID, webhookURL *string) error {
	query := `UPDATE users SET webhook_url = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, webhookURL, id)
	if err != nil {
		return fmt.Errorf("update user webhook url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// Credit adds amount to the user's balance within a transaction.
func (r *UserRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	query := `UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("credit user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// Debit subtracts amount from the user's balance within a transaction.
// The balance guard in the WHERE clause makes overdraw impossible regardless
// of what the caller read earlier; false means insufficient funds.
func (r *UserRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error) {
	query := `UPDATE users SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1`

	tag, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return false, fmt.Errorf("debit user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementCompletedExchanges bumps the user's completed exchange counter.
func (r *UserRepo) IncrementCompletedExchanges(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `UPDATE users SET completed_exchanges = completed_exchanges + 1, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("increment completed exchanges: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// scanUser is a helper to scan a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	var lat, lng *float64
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Balance, &u.Status,
		&lat, &lng, &u.CompletedExchanges, &u.WebhookURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lat != nil && lng != nil {
		u.Location = &domain.Point{Lat: *lat, Lng: *lng}
	}
	return u, nil
}
