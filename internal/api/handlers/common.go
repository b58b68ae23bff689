package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
)

// ErrorResponse is the error envelope every endpoint returns
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error code constants shared across handlers
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidAccountID = "INVALID_ACCOUNT_ID"
	ErrCodeInvalidAmount    = "INVALID_AMOUNT"
	ErrCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL"
)

var displayPrinter = message.NewPrinter(language.English)

// displayAmount renders a base-unit amount with digit grouping for the
// front-end collaborator. Presentation only; never parsed back.
func displayAmount(d decimal.Decimal) string {
	return displayPrinter.Sprintf("%d", d.IntPart())
}

// SendError sends an error envelope with the given status
func SendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Code: code, Message: message})
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string) {
	SendError(c, http.StatusBadRequest, code, message)
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, code, message string) {
	SendError(c, http.StatusNotFound, code, message)
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	SendError(c, http.StatusInternalServerError, code, message)
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a 201 Created response with data
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// parseAccountID reads and validates the :accountId path parameter
func parseAccountID(c *gin.Context) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidAccountID, "Invalid account ID format")
		return uuid.Nil, false
	}
	return accountID, true
}

// sendDomainError maps pipeline errors to HTTP statuses. Rejections are
// expected outcomes, reported with their stable code; everything
// unclassified is a 500.
func sendDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		SendNotFound(c, ErrCodeAccountNotFound, "Account not found")
	case errors.Is(err, apperrors.ErrLockContention):
		SendError(c, http.StatusConflict, apperrors.RejectionCode(err), "Another operation is already in progress for this account")
	case apperrors.IsRejection(err):
		SendError(c, http.StatusUnprocessableEntity, apperrors.RejectionCode(err), err.Error())
	case errors.Is(err, apperrors.ErrTreasuryUnderfunded):
		SendError(c, http.StatusServiceUnavailable, apperrors.RejectionCode(err), "Settlement temporarily unavailable")
	default:
		SendInternalError(c, ErrCodeInternalError, "Internal server error")
	}
}
