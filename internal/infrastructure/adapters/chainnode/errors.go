package chainnode

import (
	"fmt"

	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
)

// ErrorResponse represents a node gateway error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("node gateway error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable reports whether the request can safely be retried.
// Rate limits and server-side failures are transient; any other 4xx
// means the node rejected the request outright.
func (e *ErrorResponse) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrTransferNotFound indicates the node has no record of the signature
var ErrTransferNotFound = apperrors.ErrTransferNotFound

// ErrTransferFailed indicates the node reported the transfer as failed
var ErrTransferFailed = fmt.Errorf("transfer failed on chain")
