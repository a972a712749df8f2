package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The fakes below mirror the conditional writes of the SQL layer: every
// state transition checks the expected prior state under one mutex, so
// races between concurrent callers resolve the same way the database
// row-level CAS writes do. Reads hand out copies, never map aliases.

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ports.ErrDuplicateEmail
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryUserRepo) UpdateLocation(ctx context.Context, id uuid.UUID, location domain.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	loc := location
	u.Location = &loc
	return nil
}

func (r *inMemoryUserRepo) UpdateWebhookURL(ctx context.Context, id uuid.UUID, webhookURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.WebhookURL = webhookURL
	return nil
}

func (r *inMemoryUserRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.Balance += amount
	return nil
}

func (r *inMemoryUserRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, fmt.Errorf("user not found")
	}
	if u.Balance < amount {
		return false, nil
	}
	u.Balance -= amount
	return true, nil
}

func (r *inMemoryUserRepo) IncrementCompletedExchanges(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.CompletedExchanges++
	return nil
}

// --- In-Memory Request Repo ---

type inMemoryRequestRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*domain.ExchangeRequest
}

func newInMemoryRequestRepo() *inMemoryRequestRepo {
	return &inMemoryRequestRepo{requests: make(map[uuid.UUID]*domain.ExchangeRequest)}
}

func (r *inMemoryRequestRepo) Create(ctx context.Context, request *domain.ExchangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.RequesterID == request.RequesterID && existing.Status.IsActive() {
			return ports.ErrDuplicateActiveRequest
		}
	}
	cp := *request
	r.requests[request.ID] = &cp
	return nil
}

func (r *inMemoryRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *inMemoryRequestRepo) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.ExchangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.RequesterID == userID && req.Status.IsActive() {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryRequestRepo) ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.ExchangeRequest
	for _, req := range r.requests {
		if req.RequesterID == userID {
			result = append(result, *req)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginateRequests(result, page, pageSize)
}

func (r *inMemoryRequestRepo) FindNearby(ctx context.Context, params ports.NearbyParams) ([]domain.ExchangeRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.ExchangeRequest
	for _, req := range r.requests {
		if req.Status != domain.RequestStatusCreated {
			continue
		}
		if !req.ExpiresAt.After(params.Now) {
			continue
		}
		if req.RequesterID == params.ExcludeUserID {
			continue
		}
		if params.Direction != nil && req.Direction != *params.Direction {
			continue
		}
		if params.MinAmount != nil && req.Amount < *params.MinAmount {
			continue
		}
		if params.MaxAmount != nil && req.Amount > *params.MaxAmount {
			continue
		}
		distance := params.Origin.DistanceMeters(req.Location)
		if distance > params.MaxDistanceMeters {
			continue
		}
		cp := *req
		cp.DistanceMeters = distance
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DistanceMeters < result[j].DistanceMeters
	})
	return paginateRequests(result, params.Page, params.PageSize)
}

func (r *inMemoryRequestRepo) IncrementViewCounts(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if req, ok := r.requests[id]; ok {
			req.ViewCount++
		}
	}
	return nil
}

func (r *inMemoryRequestRepo) MarkAccepted(ctx context.Context, id, helperID, linkedRequestID uuid.UUID, code string, acceptedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return false, nil
	}
	if req.Status != domain.RequestStatusCreated || req.HelperID != nil || !req.ExpiresAt.After(acceptedAt) {
		return false, nil
	}
	hID, lID, at := helperID, linkedRequestID, acceptedAt
	req.Status = domain.RequestStatusAccepted
	req.HelperID = &hID
	req.LinkedRequestID = &lID
	req.CompletionCode = &code
	req.AcceptedAt = &at
	return true, nil
}

func (r *inMemoryRequestRepo) MarkLinked(ctx context.Context, id, linkedRequestID uuid.UUID, acceptedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return false, nil
	}
	alreadyLinked := req.Status == domain.RequestStatusAccepted &&
		req.LinkedRequestID != nil && *req.LinkedRequestID == linkedRequestID
	if req.Status != domain.RequestStatusCreated && !alreadyLinked {
		return false, nil
	}
	lID, at := linkedRequestID, acceptedAt
	req.Status = domain.RequestStatusAccepted
	req.LinkedRequestID = &lID
	req.AcceptedAt = &at
	return true, nil
}

func (r *inMemoryRequestRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.RequestStatusAccepted {
		return false, nil
	}
	at := completedAt
	req.Status = domain.RequestStatusCompleted
	req.CompletedAt = &at
	return true, nil
}

func (r *inMemoryRequestRepo) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.RequestStatusCreated {
		return false, nil
	}
	at := cancelledAt
	req.Status = domain.RequestStatusCancelled
	req.CancelledAt = &at
	return true, nil
}

func (r *inMemoryRequestRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired int64
	for _, req := range r.requests {
		if req.Status == domain.RequestStatusCreated && !req.ExpiresAt.After(now) {
			req.Status = domain.RequestStatusExpired
			expired++
		}
	}
	return expired, nil
}

func (r *inMemoryRequestRepo) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, req := range r.requests {
		var terminalAt *time.Time
		switch req.Status {
		case domain.RequestStatusCompleted:
			terminalAt = req.CompletedAt
		case domain.RequestStatusCancelled:
			terminalAt = req.CancelledAt
		case domain.RequestStatusExpired:
			terminalAt = &req.ExpiresAt
		default:
			continue
		}
		if terminalAt != nil && terminalAt.Before(cutoff) {
			delete(r.requests, id)
			purged++
		}
	}
	return purged, nil
}

func paginateRequests(result []domain.ExchangeRequest, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	total := int64(len(result))
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.ExchangeRequest{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.RequestID == requestID || t.LinkedRequestID == requestID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) MarkReversed(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.TransactionStatusCompleted {
		return false, nil
	}
	t.Status = domain.TransactionStatusReversed
	return true, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.PayerID != params.UserID && t.PayeeID != params.UserID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.From != nil && t.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && t.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
