package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/harvest-service/harvest_service/internal/domain/services"
)

// SettlementStore adapts AccountRepository to the account store shape
// the pipelines consume, returning the row-locked transaction behind
// its interface.
type SettlementStore struct {
	*AccountRepository
}

// NewSettlementStore wraps an account repository
func NewSettlementStore(repo *AccountRepository) *SettlementStore {
	return &SettlementStore{AccountRepository: repo}
}

// BeginAccountTx opens a row-locked transaction on the account
func (s *SettlementStore) BeginAccountTx(ctx context.Context, accountID uuid.UUID) (services.AccountTx, error) {
	return s.AccountRepository.BeginAccountTx(ctx, accountID)
}
