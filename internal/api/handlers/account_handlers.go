package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

// AccountServiceInterface defines the interface for account operations
type AccountServiceInterface interface {
	Create(ctx context.Context, req *entities.CreateAccountRequest) (*entities.Account, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*entities.AccountBalanceView, error)
	UpdatePolicy(ctx context.Context, accountID uuid.UUID, req *entities.UpdateAccountPolicyRequest) (*entities.Account, error)
	History(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error)
}

// AccountHandlers handles account lifecycle and balance views
type AccountHandlers struct {
	accountService AccountServiceInterface
	logger         *logger.Logger
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(accountService AccountServiceInterface, logger *logger.Logger) *AccountHandlers {
	return &AccountHandlers{
		accountService: accountService,
		logger:         logger,
	}
}

// balanceResponse decorates the computed view with display strings
type balanceResponse struct {
	*entities.AccountBalanceView
	BalanceDisplay string `json:"balance_display"`
	ProfitDisplay  string `json:"profit_display"`
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandlers) CreateAccount(c *gin.Context) {
	var req entities.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}

	account, err := h.accountService.Create(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("failed to provision account",
			"external_id", req.ExternalID,
			"error", err)
		sendDomainError(c, err)
		return
	}

	SendCreated(c, account)
}

// GetBalance handles GET /api/v1/accounts/:accountId/balance
func (h *AccountHandlers) GetBalance(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	view, err := h.accountService.Balance(c.Request.Context(), accountID)
	if err != nil {
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, balanceResponse{
		AccountBalanceView: view,
		BalanceDisplay:     displayAmount(view.Balance),
		ProfitDisplay:      displayAmount(view.Profit),
	})
}

// UpdatePolicy handles PUT /api/v1/accounts/:accountId/policy
func (h *AccountHandlers) UpdatePolicy(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req entities.UpdateAccountPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}

	account, err := h.accountService.UpdatePolicy(c.Request.Context(), accountID, &req)
	if err != nil {
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, account)
}

// GetHistory handles GET /api/v1/accounts/:accountId/transactions
func (h *AccountHandlers) GetHistory(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	var filter entities.TransactionFilter
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := entities.TransactionKind(kindStr)
		if err := kind.Validate(); err != nil {
			SendBadRequest(c, ErrCodeInvalidRequest, "Invalid transaction kind")
			return
		}
		filter.Kind = &kind
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := entities.TransactionStatus(statusStr)
		if err := status.Validate(); err != nil {
			SendBadRequest(c, ErrCodeInvalidRequest, "Invalid transaction status")
			return
		}
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, err := h.accountService.History(c.Request.Context(), accountID, filter)
	if err != nil {
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, gin.H{
		"items": transactions,
		"count": len(transactions),
	})
}
