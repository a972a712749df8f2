package handler

import (
	"strconv"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/dto"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/middleware"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles profile, balance and settlement history endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetProfile handles GET /api/v1/users/me.
func (h *WalletHandler) GetProfile(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	user, err := h.walletSvc.GetProfile(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ProfileResponse{
		ID:                 user.ID.String(),
		Email:              user.Email,
		Name:               user.Name,
		Balance:            user.Balance,
		Status:             string(user.Status),
		CompletedExchanges: user.CompletedExchanges,
		WebhookURL:         user.WebhookURL,
		CreatedAt:          user.CreatedAt.Format(time.RFC3339),
	})
}

// UpdateWebhook handles PUT /api/v1/users/me/webhook. A null webhook_url
// clears the registration.
func (h *WalletHandler) UpdateWebhook(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.walletSvc.UpdateWebhookURL(c.Request.Context(), userID.(uuid.UUID), req.WebhookURL); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "webhook URL updated"})
}

// GetBalance handles GET /api/v1/wallets/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// Topup handles POST /api/v1/wallets/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	newBalance, err := h.walletSvc.Topup(c.Request.Context(), userID.(uuid.UUID), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: newBalance})
}

// ListTransactions handles GET /api/v1/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, pageSize := parsePaging(c)
	params := ports.TransactionListParams{
		UserID:   userID.(uuid.UUID),
		Page:     page,
		PageSize: pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	response.OKPaginated(c, items, paginationFor(page, pageSize, total))
}

// toTransactionResponse converts domain.Transaction to its wire form.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:              tx.ID.String(),
		RequestID:       tx.RequestID.String(),
		LinkedRequestID: tx.LinkedRequestID.String(),
		PayerID:         tx.PayerID.String(),
		PayeeID:         tx.PayeeID.String(),
		Amount:          tx.Amount,
		PlatformFee:     tx.PlatformFee,
		NetAmount:       tx.NetAmount,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
}
