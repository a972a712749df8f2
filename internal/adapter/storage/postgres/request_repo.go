package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const requestColumns = `id, requester_id, helper_id, amount, platform_fee, direction, lat, lng, status,
	linked_request_id, completion_code, notes, view_count, expires_at, created_at, accepted_at, completed_at, cancelled_at`

// haversineExpr computes the spherical distance in meters between the row's
// coordinates and the origin passed as $1 (lat) and $2 (lng). least() guards
// asin against floating point drift past 1.
const haversineExpr = `2 * 6371000 * asin(least(1.0, sqrt(
		power(sin(radians(lat - $1) / 2), 2) +
		cos(radians($1)) * cos(radians(lat)) *
		power(sin(radians(lng - $2) / 2), 2))))`

// RequestRepo implements ports.RequestRepository.
type RequestRepo struct {
	pool Pool
}

// NewRequestRepo creates a new RequestRepo.
func NewRequestRepo(pool Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

// Create inserts a new exchange request. The one-active-request-per-user
// partial unique index is the authoritative guard: a violation surfaces as
// ports.ErrDuplicateActiveRequest even when a pre-check raced.
func (r *RequestRepo) Create(ctx context.Context, req *domain.ExchangeRequest) error {
	query := `INSERT INTO exchange_requests (id, requester_id, amount, platform_fee, direction, lat, lng, status, notes, view_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.RequesterID, req.Amount, req.PlatformFee, req.Direction,
		req.Location.Lat, req.Location.Lng, req.Status, req.Notes,
		req.ViewCount, req.ExpiresAt, req.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ports.ErrDuplicateActiveRequest
		}
		return fmt.Errorf("insert exchange request: %w", err)
	}
	return nil
}

// GetByID fetches a request by its UUID.
func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM exchange_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByUserID fetches the user's single CREATED or ACCEPTED request, if any.
func (r *RequestRepo) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.ExchangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM exchange_requests
		WHERE requester_id = $1 AND status IN ('CREATED', 'ACCEPTED')`
	return scanRequest(r.pool.QueryRow(ctx, query, userID))
}

// ListByUserID fetches the user's requests newest first, with pagination.
func (r *RequestRepo) ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exchange_requests WHERE requester_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + requestColumns + ` FROM exchange_requests
		WHERE requester_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	reqs, err := collectRequests(rows, false)
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// FindNearby runs the discovery query: CREATED, unexpired requests within the
// radius, excluding the caller's own, optionally filtered by direction and
// amount, sorted ascending by spherical distance. Filtering happens inside
// the query so a row past its deadline or claimed mid-flight never comes back.
func (r *RequestRepo) FindNearby(ctx context.Context, params ports.NearbyParams) ([]domain.ExchangeRequest, int64, error) {
	conditions := []string{"status = 'CREATED'"}
	args := []any{params.Origin.Lat, params.Origin.Lng}
	argIdx := 3

	conditions = append(conditions, fmt.Sprintf("expires_at > $%d", argIdx))
	args = append(args, params.Now)
	argIdx++

	conditions = append(conditions, fmt.Sprintf("requester_id <> $%d", argIdx))
	args = append(args, params.ExcludeUserID)
	argIdx++

	if params.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIdx))
		args = append(args, *params.Direction)
		argIdx++
	}
	if params.MinAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount >= $%d", argIdx))
		args = append(args, *params.MinAmount)
		argIdx++
	}
	if params.MaxAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount <= $%d", argIdx))
		args = append(args, *params.MaxAmount)
		argIdx++
	}

	sub := fmt.Sprintf(`SELECT %s, %s AS distance_meters FROM exchange_requests WHERE %s`,
		requestColumns, haversineExpr, strings.Join(conditions, " AND "))

	distIdx := argIdx
	args = append(args, params.MaxDistanceMeters)
	argIdx++

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM (%s) candidates WHERE distance_meters <= $%d`, sub, distIdx)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count nearby requests: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s, distance_meters FROM (%s) candidates
		WHERE distance_meters <= $%d ORDER BY distance_meters ASC LIMIT $%d OFFSET $%d`,
		requestColumns, sub, distIdx, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("find nearby requests: %w", err)
	}
	defer rows.Close()

	reqs, err := collectRequests(rows, true)
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// IncrementViewCounts bumps the view counter of the given requests.
// Best-effort: concurrent viewers may interleave, the atomic increment keeps
// the counter consistent without read-modify-write.
func (r *RequestRepo) IncrementViewCounts(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE exchange_requests SET view_count = view_count + 1 WHERE id = ANY($1)`

	_, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("increment view counts: %w", err)
	}
	return nil
}

// MarkAccepted claims the request for the helper. The conditional write is
// the single-winner mechanism: among concurrent helpers only one UPDATE
// matches the CREATED, unclaimed, unexpired row; everyone else gets false.
func (r *RequestRepo) MarkAccepted(ctx context.Context, id, helperID, linkedRequestID uuid.UUID, code string, acceptedAt time.Time) (bool, error) {
	query := `UPDATE exchange_requests
		SET helper_id = $2, status = 'ACCEPTED', linked_request_id = $3, completion_code = $4, accepted_at = $5
		WHERE id = $1 AND status = 'CREATED' AND helper_id IS NULL AND expires_at > $5`

	tag, err := r.pool.Exec(ctx, query, id, helperID, linkedRequestID, code, acceptedAt)
	if err != nil {
		return false, fmt.Errorf("mark request accepted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLinked moves the helper's own request to ACCEPTED with a link to the
// target. Retryable: re-applying the same link matches the second branch of
// the WHERE clause and rewrites identical values.
func (r *RequestRepo) MarkLinked(ctx context.Context, id, linkedRequestID uuid.UUID, acceptedAt time.Time) (bool, error) {
	query := `UPDATE exchange_requests
		SET status = 'ACCEPTED', linked_request_id = $2, accepted_at = COALESCE(accepted_at, $3)
		WHERE id = $1 AND (status = 'CREATED' OR (status = 'ACCEPTED' AND linked_request_id = $2))`

	tag, err := r.pool.Exec(ctx, query, id, linkedRequestID, acceptedAt)
	if err != nil {
		return false, fmt.Errorf("mark request linked: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted advances an ACCEPTED request to COMPLETED.
// This MUST be called within the settlement transaction.
func (r *RequestRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `UPDATE exchange_requests SET status = 'COMPLETED', completed_at = $2
		WHERE id = $1 AND status = 'ACCEPTED'`

	tag, err := tx.Exec(ctx, query, id, completedAt)
	if err != nil {
		return false, fmt.Errorf("mark request completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled cancels a request only while it is still CREATED.
func (r *RequestRepo) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) (bool, error) {
	query := `UPDATE exchange_requests SET status = 'CANCELLED', cancelled_at = $2
		WHERE id = $1 AND status = 'CREATED'`

	tag, err := r.pool.Exec(ctx, query, id, cancelledAt)
	if err != nil {
		return false, fmt.Errorf("mark request cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireStale transitions CREATED requests past their deadline to EXPIRED.
func (r *RequestRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE exchange_requests SET status = 'EXPIRED'
		WHERE status = 'CREATED' AND expires_at <= $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeTerminal deletes terminal-state requests whose terminal timestamp is
// older than the cutoff.
func (r *RequestRepo) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM exchange_requests
		WHERE (status = 'COMPLETED' AND completed_at < $1)
		   OR (status = 'CANCELLED' AND cancelled_at < $1)
		   OR (status = 'EXPIRED' AND expires_at < $1)`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge terminal requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanRequest is a helper to scan a single row into an ExchangeRequest.
func scanRequest(row pgx.Row) (*domain.ExchangeRequest, error) {
	req := &domain.ExchangeRequest{}
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.HelperID, &req.Amount, &req.PlatformFee,
		&req.Direction, &req.Location.Lat, &req.Location.Lng, &req.Status,
		&req.LinkedRequestID, &req.CompletionCode, &req.Notes, &req.ViewCount,
		&req.ExpiresAt, &req.CreatedAt, &req.AcceptedAt, &req.CompletedAt, &req.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan exchange request: %w", err)
	}
	return req, nil
}

// collectRequests drains rows into a slice. withDistance expects the extra
// distance_meters column produced by the discovery subquery.
func collectRequests(rows pgx.Rows, withDistance bool) ([]domain.ExchangeRequest, error) {
	var reqs []domain.ExchangeRequest
	for rows.Next() {
		req := domain.ExchangeRequest{}
		dest := []any{
			&req.ID, &req.RequesterID, &req.HelperID, &req.Amount, &req.PlatformFee,
			&req.Direction, &req.Location.Lat, &req.Location.Lng, &req.Status,
			&req.LinkedRequestID, &req.CompletionCode, &req.Notes, &req.ViewCount,
			&req.ExpiresAt, &req.CreatedAt, &req.AcceptedAt, &req.CompletedAt, &req.CancelledAt,
		}
		if withDistance {
			dest = append(dest, &req.DistanceMeters)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan exchange request row: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange request rows: %w", err)
	}
	return reqs, nil
}
