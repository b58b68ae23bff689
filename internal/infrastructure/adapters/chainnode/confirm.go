package chainnode

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

// WaitForConfirmation polls the gateway until the transfer reaches a
// terminal state or the timeout elapses. A timeout does not mean the
// transfer failed, only that its outcome is unknown; callers must not
// resubmit and should reconcile by re-checking the signature later.
func (c *Client) WaitForConfirmation(ctx context.Context, signature string, pollInterval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetTransferStatus(ctx, signature)
		if err != nil && !errors.Is(err, ErrTransferNotFound) {
			c.logger.Warn("transfer status check failed",
				"signature", signature,
				"error", err)
		}
		if err == nil {
			switch status.Status {
			case TransferStatusConfirmed:
				metrics.TransfersConfirmedTotal.Inc()
				return nil
			case TransferStatusFailed:
				return ErrTransferFailed
			}
		}

		if time.Now().After(deadline) {
			return apperrors.ErrConfirmationTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
