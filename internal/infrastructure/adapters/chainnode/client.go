package chainnode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRequestsPerSec = 10
	maxRetries            = 3
)

// Config represents node gateway client configuration
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client is an HTTP client for the chain node gateway. Reads are retried
// with exponential backoff behind a circuit breaker; transfer submission
// is sent exactly once because a timed-out submit may still have landed.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	backoffUnit    time.Duration
	logger         *logger.Logger
}

// NewClient creates a new node gateway client
func NewClient(config Config, log *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSec == 0 {
		config.RequestsPerSec = defaultRequestsPerSec
	}

	cbSettings := gobreaker.Settings{
		Name:        "NodeGateway",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("node gateway circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1),
		backoffUnit:    time.Second,
		logger:         log,
	}
}

// ProvisionWallet asks the gateway to generate a new custodial wallet
func (c *Client) ProvisionWallet(ctx context.Context) (*WalletResponse, error) {
	var resp WalletResponse
	if err := c.doPost(ctx, "provision_wallet", "/v1/wallets", nil, &resp); err != nil {
		return nil, fmt.Errorf("provision wallet failed: %w", err)
	}
	return &resp, nil
}

// GetBalance fetches the on-chain balance of an address in base units
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("/v1/addresses/%s/balance", url.PathEscape(address))
	var resp BalanceResponse
	if err := c.doGet(ctx, "get_balance", endpoint, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("get balance failed: %w", err)
	}
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", resp.Balance, err)
	}
	return balance, nil
}

// EstimateFee fetches the current network fee in base units
func (c *Client) EstimateFee(ctx context.Context) (decimal.Decimal, error) {
	var resp FeeResponse
	if err := c.doGet(ctx, "estimate_fee", "/v1/fees", &resp); err != nil {
		return decimal.Zero, fmt.Errorf("estimate fee failed: %w", err)
	}
	fee, err := decimal.NewFromString(resp.Fee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse fee %q: %w", resp.Fee, err)
	}
	return fee, nil
}

// MinimumReserve fetches the minimum balance an address must retain
func (c *Client) MinimumReserve(ctx context.Context) (decimal.Decimal, error) {
	var resp ReserveResponse
	if err := c.doGet(ctx, "minimum_reserve", "/v1/reserve", &resp); err != nil {
		return decimal.Zero, fmt.Errorf("minimum reserve failed: %w", err)
	}
	minimum, err := decimal.NewFromString(resp.Minimum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse reserve %q: %w", resp.Minimum, err)
	}
	return minimum, nil
}

// SubmitTransfer submits a signed transfer and returns its signature.
// The request is sent once and never retried here: after a timeout the
// transfer may already be in the mempool, and a second submission would
// double-spend. Callers reconcile ambiguous outcomes by observation.
func (c *Client) SubmitTransfer(ctx context.Context, req TransferRequest) (string, error) {
	var resp TransferResponse
	if err := c.doPost(ctx, "submit_transfer", "/v1/transfers", req, &resp); err != nil {
		return "", fmt.Errorf("submit transfer failed: %w", err)
	}
	metrics.TransfersSubmittedTotal.Inc()
	c.logger.Info("transfer submitted",
		"from", req.FromAddress,
		"to", req.ToAddress,
		"amount", req.Amount,
		"signature", resp.Signature)
	return resp.Signature, nil
}

// GetTransferStatus fetches the confirmation state of a submitted transfer
func (c *Client) GetTransferStatus(ctx context.Context, signature string) (*TransferStatusResponse, error) {
	endpoint := fmt.Sprintf("/v1/transfers/%s", url.PathEscape(signature))
	var resp TransferStatusResponse
	if err := c.doGet(ctx, "transfer_status", endpoint, &resp); err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("get transfer status failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) doGet(ctx context.Context, operation, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	timer := metrics.NewTimer(metrics.GatewayRequestDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doGetInternal(ctx, endpoint, response)
	})
	return err
}

func (c *Client) doGetInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * c.backoffUnit
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		if resp.StatusCode >= 400 {
			// Rate limits and server-side failures are transient;
			// other 4xx are final.
			apiErr := c.decodeError(resp.StatusCode, body)
			var nodeErr *ErrorResponse
			if errors.As(apiErr, &nodeErr) && nodeErr.IsRetryable() {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if response != nil && len(body) > 0 {
			if err := json.Unmarshal(body, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %v", apperrors.ErrRPCExhausted, lastErr)
}

func (c *Client) doPost(ctx context.Context, operation, endpoint string, payload, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	timer := metrics.NewTimer(metrics.GatewayRequestDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doPostInternal(ctx, endpoint, payload, response)
	})
	return err
}

func (c *Client) doPostInternal(ctx context.Context, endpoint string, payload, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.decodeError(resp.StatusCode, body)
	}

	if response != nil && len(body) > 0 {
		if err := json.Unmarshal(body, response); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *Client) decodeError(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		errResp.StatusCode = statusCode
		return &errResp
	}
	return &ErrorResponse{
		StatusCode: statusCode,
		Code:       "UNKNOWN",
		Message:    string(body),
	}
}
