package chainnode

// WalletResponse represents a freshly provisioned custodial wallet
type WalletResponse struct {
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

// BalanceResponse represents an on-chain balance query result
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"` // base units
}

// FeeResponse represents the current network fee estimate
type FeeResponse struct {
	Fee string `json:"fee"` // base units
}

// ReserveResponse represents the minimum balance an address must retain
type ReserveResponse struct {
	Minimum string `json:"minimum"` // base units
}

// TransferRequest represents a signed transfer submission
type TransferRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      string `json:"amount"` // base units
	SigningKey  string `json:"signingKey"`
}

// TransferResponse represents the node's acknowledgement of a submission
type TransferResponse struct {
	Signature string `json:"signature"`
}

// TransferStatus values reported by the node gateway
const (
	TransferStatusPending   = "pending"
	TransferStatusConfirmed = "confirmed"
	TransferStatusFailed    = "failed"
)

// TransferStatusResponse represents the confirmation state of a transfer
type TransferStatusResponse struct {
	Signature     string `json:"signature"`
	Status        string `json:"status"`
	Confirmations int    `json:"confirmations"`
}
