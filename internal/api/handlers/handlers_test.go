package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Create(ctx context.Context, req *entities.CreateAccountRequest) (*entities.Account, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountService) Balance(ctx context.Context, accountID uuid.UUID) (*entities.AccountBalanceView, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AccountBalanceView), args.Error(1)
}

func (m *MockAccountService) UpdatePolicy(ctx context.Context, accountID uuid.UUID, req *entities.UpdateAccountPolicyRequest) (*entities.Account, error) {
	args := m.Called(ctx, accountID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountService) History(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error) {
	args := m.Called(ctx, accountID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerTransaction), args.Error(1)
}

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*entities.SettlementResult, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementResult), args.Error(1)
}

func (m *MockSettlementService) Reinvest(ctx context.Context, accountID uuid.UUID) (*entities.SettlementResult, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementResult), args.Error(1)
}

type MockDepositService struct {
	mock.Mock
}

func (m *MockDepositService) Sweep(ctx context.Context, accountID uuid.UUID) (*entities.SweepResult, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SweepResult), args.Error(1)
}

func newSettlementRouter(settlements *MockSettlementService, deposits *MockDepositService) *gin.Engine {
	h := NewSettlementHandlers(settlements, deposits, logger.NewNop())
	router := gin.New()
	router.POST("/accounts/:accountId/withdrawals", h.Withdraw)
	router.POST("/accounts/:accountId/sweeps", h.Sweep)
	router.POST("/accounts/:accountId/reinvest", h.Reinvest)
	return router
}

func newAccountRouter(accounts *MockAccountService) *gin.Engine {
	h := NewAccountHandlers(accounts, logger.NewNop())
	router := gin.New()
	router.POST("/accounts", h.CreateAccount)
	router.GET("/accounts/:accountId/balance", h.GetBalance)
	router.PUT("/accounts/:accountId/policy", h.UpdatePolicy)
	router.GET("/accounts/:accountId/transactions", h.GetHistory)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWithdraw_Committed(t *testing.T) {
	accountID := uuid.New()
	settlements := new(MockSettlementService)
	settlements.On("Withdraw", mock.Anything, accountID, decimal.NewFromInt(1_000_000)).Return(&entities.SettlementResult{
		Outcome:    entities.SettlementOutcomeCommitted,
		NewBalance: decimal.NewFromInt(1_000_000),
	}, nil)

	router := newSettlementRouter(settlements, new(MockDepositService))
	w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/withdrawals", gin.H{"amount": "1000000"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(entities.SettlementOutcomeCommitted), resp["outcome"])
	assert.Equal(t, "1,000,000", resp["new_balance_display"])
}

func TestWithdraw_ConfirmationTimeoutIsAccepted(t *testing.T) {
	accountID := uuid.New()
	settlements := new(MockSettlementService)
	settlements.On("Withdraw", mock.Anything, accountID, mock.Anything).Return(&entities.SettlementResult{
		Outcome: entities.SettlementOutcomeAwaitingReconcile,
	}, apperrors.ErrConfirmationTimeout)

	router := newSettlementRouter(settlements, new(MockDepositService))
	w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/withdrawals", gin.H{"amount": "500000"})

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(entities.SettlementOutcomeAwaitingReconcile), resp["outcome"])
}

func TestWithdraw_RejectionsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"below minimum", apperrors.ErrBelowMinimum, http.StatusUnprocessableEntity, "BELOW_MINIMUM"},
		{"insufficient balance", apperrors.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"lock contention", apperrors.ErrLockContention, http.StatusConflict, "LOCK_CONTENTION"},
		{"treasury underfunded", apperrors.ErrTreasuryUnderfunded, http.StatusServiceUnavailable, "TREASURY_UNDERFUNDED"},
		{"account missing", apperrors.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accountID := uuid.New()
			settlements := new(MockSettlementService)
			settlements.On("Withdraw", mock.Anything, accountID, mock.Anything).Return(nil, tt.err)

			router := newSettlementRouter(settlements, new(MockDepositService))
			w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/withdrawals", gin.H{"amount": "1000000"})

			require.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestWithdraw_InvalidAmount(t *testing.T) {
	accountID := uuid.New()
	settlements := new(MockSettlementService)
	router := newSettlementRouter(settlements, new(MockDepositService))

	for _, amount := range []string{"-5", "0", "1.5", "abc"} {
		w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/withdrawals", gin.H{"amount": amount})
		assert.Equal(t, http.StatusBadRequest, w.Code, "amount %q", amount)
	}
	settlements.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdraw_InvalidAccountID(t *testing.T) {
	router := newSettlementRouter(new(MockSettlementService), new(MockDepositService))
	w := doJSON(t, router, http.MethodPost, "/accounts/not-a-uuid/withdrawals", gin.H{"amount": "1000000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweep_ReturnsResult(t *testing.T) {
	accountID := uuid.New()
	deposits := new(MockDepositService)
	deposits.On("Sweep", mock.Anything, accountID).Return(&entities.SweepResult{
		Swept:   decimal.NewFromInt(895_000),
		Fee:     decimal.NewFromInt(5_000),
		Reserve: decimal.NewFromInt(100_000),
	}, nil)

	router := newSettlementRouter(new(MockSettlementService), deposits)
	w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/sweeps", nil)

	require.Equal(t, http.StatusOK, w.Code)
	deposits.AssertExpectations(t)
}

func TestSweep_NothingToSweep(t *testing.T) {
	accountID := uuid.New()
	deposits := new(MockDepositService)
	deposits.On("Sweep", mock.Anything, accountID).Return(nil, apperrors.ErrNothingToSweep)

	router := newSettlementRouter(new(MockSettlementService), deposits)
	w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/sweeps", nil)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOTHING_TO_SWEEP", resp.Code)
}

func TestReinvest_Committed(t *testing.T) {
	accountID := uuid.New()
	settlements := new(MockSettlementService)
	settlements.On("Reinvest", mock.Anything, accountID).Return(&entities.SettlementResult{
		Outcome:    entities.SettlementOutcomeCommitted,
		NewBalance: decimal.NewFromInt(2_000_000),
	}, nil)

	router := newSettlementRouter(settlements, new(MockDepositService))
	w := doJSON(t, router, http.MethodPost, "/accounts/"+accountID.String()+"/reinvest", nil)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAccount_Provisioned(t *testing.T) {
	accounts := new(MockAccountService)
	created := &entities.Account{
		ID:             uuid.New(),
		ExternalID:     "ext-9",
		DepositAddress: "addr-9",
	}
	accounts.On("Create", mock.Anything, mock.MatchedBy(func(req *entities.CreateAccountRequest) bool {
		return req.ExternalID == "ext-9"
	})).Return(created, nil)

	router := newAccountRouter(accounts)
	w := doJSON(t, router, http.MethodPost, "/accounts", gin.H{"external_id": "ext-9"})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp entities.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "addr-9", resp.DepositAddress)
}

func TestCreateAccount_MissingExternalID(t *testing.T) {
	router := newAccountRouter(new(MockAccountService))
	w := doJSON(t, router, http.MethodPost, "/accounts", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBalance_ReturnsDisplayAmounts(t *testing.T) {
	accountID := uuid.New()
	accounts := new(MockAccountService)
	accounts.On("Balance", mock.Anything, accountID).Return(&entities.AccountBalanceView{
		AccountID: accountID,
		Principal: decimal.NewFromInt(1_000_000),
		Balance:   decimal.NewFromInt(1_414_213),
		Profit:    decimal.NewFromInt(414_213),
	}, nil)

	router := newAccountRouter(accounts)
	w := doJSON(t, router, http.MethodGet, "/accounts/"+accountID.String()+"/balance", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1,414,213", resp["balance_display"])
	assert.Equal(t, "414,213", resp["profit_display"])
}

func TestGetBalance_UnknownAccount(t *testing.T) {
	accountID := uuid.New()
	accounts := new(MockAccountService)
	accounts.On("Balance", mock.Anything, accountID).Return(nil, apperrors.ErrAccountNotFound)

	router := newAccountRouter(accounts)
	w := doJSON(t, router, http.MethodGet, "/accounts/"+accountID.String()+"/balance", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistory_FiltersByKind(t *testing.T) {
	accountID := uuid.New()
	accounts := new(MockAccountService)
	accounts.On("History", mock.Anything, accountID, mock.MatchedBy(func(f entities.TransactionFilter) bool {
		return f.Kind != nil && *f.Kind == entities.TransactionKindWithdrawal && f.Limit == 10
	})).Return([]*entities.LedgerTransaction{}, nil)

	router := newAccountRouter(accounts)
	w := doJSON(t, router, http.MethodGet, "/accounts/"+accountID.String()+"/transactions?kind=withdrawal&limit=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	accounts.AssertExpectations(t)
}

func TestGetHistory_RejectsUnknownKind(t *testing.T) {
	accountID := uuid.New()
	router := newAccountRouter(new(MockAccountService))
	w := doJSON(t, router, http.MethodGet, "/accounts/"+accountID.String()+"/transactions?kind=teleport", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePolicy_TogglesFlags(t *testing.T) {
	accountID := uuid.New()
	accounts := new(MockAccountService)
	accounts.On("UpdatePolicy", mock.Anything, accountID, mock.MatchedBy(func(req *entities.UpdateAccountPolicyRequest) bool {
		return req.AutoWithdrawal != nil && *req.AutoWithdrawal && req.AutoReinvest == nil
	})).Return(&entities.Account{ID: accountID, AutoWithdrawal: true}, nil)

	router := newAccountRouter(accounts)
	w := doJSON(t, router, http.MethodPut, "/accounts/"+accountID.String()+"/policy", gin.H{"auto_withdrawal": true})

	require.Equal(t, http.StatusOK, w.Code)
	accounts.AssertExpectations(t)
}
