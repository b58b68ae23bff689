package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

// SettlementServiceInterface defines the interface for settlement operations
type SettlementServiceInterface interface {
	Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*entities.SettlementResult, error)
	Reinvest(ctx context.Context, accountID uuid.UUID) (*entities.SettlementResult, error)
}

// DepositServiceInterface defines the interface for deposit ingestion
type DepositServiceInterface interface {
	Sweep(ctx context.Context, accountID uuid.UUID) (*entities.SweepResult, error)
}

// SettlementHandlers handles withdrawal, sweep and reinvest requests
type SettlementHandlers struct {
	settlementService SettlementServiceInterface
	depositService    DepositServiceInterface
	logger            *logger.Logger
}

// NewSettlementHandlers creates a new SettlementHandlers instance
func NewSettlementHandlers(settlementService SettlementServiceInterface, depositService DepositServiceInterface, logger *logger.Logger) *SettlementHandlers {
	return &SettlementHandlers{
		settlementService: settlementService,
		depositService:    depositService,
		logger:            logger,
	}
}

// withdrawRequest is the payload for POST withdrawals. Amount is a
// base-unit integer carried as a string to avoid float truncation.
type withdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// settlementResponse decorates the result with a display string
type settlementResponse struct {
	*entities.SettlementResult
	NewBalanceDisplay string `json:"new_balance_display"`
}

// Withdraw handles POST /api/v1/accounts/:accountId/withdrawals
func (h *SettlementHandlers) Withdraw(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		SendBadRequest(c, ErrCodeInvalidAmount, "Amount must be a positive base-unit integer")
		return
	}

	result, err := h.settlementService.Withdraw(c.Request.Context(), accountID, amount)
	if err != nil {
		// an ambiguous confirmation is not a failure: the transfer was
		// submitted and reconciliation will finish the settlement
		if errors.Is(err, apperrors.ErrConfirmationTimeout) && result != nil {
			c.JSON(http.StatusAccepted, settlementResponse{
				SettlementResult:  result,
				NewBalanceDisplay: displayAmount(result.NewBalance),
			})
			return
		}
		h.logger.Error("withdrawal failed",
			"account_id", accountID,
			"amount", amount,
			"error", err)
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, settlementResponse{
		SettlementResult:  result,
		NewBalanceDisplay: displayAmount(result.NewBalance),
	})
}

// Sweep handles POST /api/v1/accounts/:accountId/sweeps
func (h *SettlementHandlers) Sweep(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	result, err := h.depositService.Sweep(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("deposit sweep failed",
			"account_id", accountID,
			"error", err)
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, result)
}

// Reinvest handles POST /api/v1/accounts/:accountId/reinvest
func (h *SettlementHandlers) Reinvest(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	result, err := h.settlementService.Reinvest(c.Request.Context(), accountID)
	if err != nil {
		sendDomainError(c, err)
		return
	}

	SendSuccess(c, settlementResponse{
		SettlementResult:  result,
		NewBalanceDisplay: displayAmount(result.NewBalance),
	})
}
