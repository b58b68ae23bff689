package chainnode

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Adapter exposes the gateway client in the shape the domain services
// consume: flat signatures, decimal amounts.
type Adapter struct {
	client *Client
}

// NewAdapter wraps a gateway client
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// GetBalance returns an address balance in base units
func (a *Adapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return a.client.GetBalance(ctx, address)
}

// EstimateFee returns the current network fee in base units
func (a *Adapter) EstimateFee(ctx context.Context) (decimal.Decimal, error) {
	return a.client.EstimateFee(ctx)
}

// MinimumReserve returns the minimum balance an address must retain
func (a *Adapter) MinimumReserve(ctx context.Context) (decimal.Decimal, error) {
	return a.client.MinimumReserve(ctx)
}

// SubmitTransfer submits a transfer and returns its chain signature
func (a *Adapter) SubmitTransfer(ctx context.Context, from, to string, amount decimal.Decimal, signingKey string) (string, error) {
	return a.client.SubmitTransfer(ctx, TransferRequest{
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount.String(),
		SigningKey:  signingKey,
	})
}

// WaitForConfirmation blocks until the transfer confirms, fails, or the
// timeout elapses
func (a *Adapter) WaitForConfirmation(ctx context.Context, signature string, pollInterval, timeout time.Duration) error {
	return a.client.WaitForConfirmation(ctx, signature, pollInterval, timeout)
}

// GetTransferStatus returns the transfer's state string, or
// ErrTransferNotFound when the chain has no record of it
func (a *Adapter) GetTransferStatus(ctx context.Context, signature string) (string, error) {
	status, err := a.client.GetTransferStatus(ctx, signature)
	if err != nil {
		return "", err
	}
	return status.Status, nil
}

// ProvisionWallet generates a custodial wallet, returning its address
// and plaintext secret. The caller encrypts the secret before storage.
func (a *Adapter) ProvisionWallet(ctx context.Context) (string, string, error) {
	wallet, err := a.client.ProvisionWallet(ctx)
	if err != nil {
		return "", "", err
	}
	return wallet.Address, wallet.Secret, nil
}
