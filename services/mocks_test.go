package services_test

import (
	"context"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/ferreirogomes/greenfund/models"
	"github.com/ferreirogomes/greenfund/services"
)

var (
	crowdsaleAddr = common.HexToAddress("0x6138B085d032e33aB6F59d6d26b4522FD78F45f9")
	greenToken    = common.HexToAddress("0xad0852764e45037e9feaa8af5d48029d2ab37365")
	ecoToken      = common.HexToAddress("0x2a1094c204e6de85d02015e5cf1a618923851c24")
	ownerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	otherAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	trackedTokens = []models.TrackedToken{
		{Symbol: "GREEN", Address: greenToken},
		{Symbol: "ECO", Address: ecoToken},
	}
)

// bigEq matches a *big.Int argument by value.
func bigEq(n int64) interface{} {
	return mock.MatchedBy(func(v *big.Int) bool { return v != nil && v.Cmp(big.NewInt(n)) == 0 })
}

// MockCrowdsale is a mock of services.CrowdsaleContract.
type MockCrowdsale struct {
	mock.Mock
}

func (m *MockCrowdsale) Address() common.Address { return crowdsaleAddr }

func (m *MockCrowdsale) Owner(ctx context.Context) (common.Address, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Address), args.Error(1)
}
func (m *MockCrowdsale) SaleCount(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(*big.Int)
	return v, args.Error(1)
}
func (m *MockCrowdsale) Sale(ctx context.Context, id *big.Int) (services.SaleRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(services.SaleRecord), args.Error(1)
}
func (m *MockCrowdsale) Cost(ctx context.Context, id *big.Int) (*big.Int, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*big.Int)
	return v, args.Error(1)
}
func (m *MockCrowdsale) PurchaseHistory(ctx context.Context, buyer common.Address) ([]models.PurchaseHistoryEntry, error) {
	args := m.Called(ctx, buyer)
	v, _ := args.Get(0).([]models.PurchaseHistoryEntry)
	return v, args.Error(1)
}
func (m *MockCrowdsale) BuyToken(ctx context.Context, from common.Address, id *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, id)
	return args.Get(0).(common.Hash), args.Error(1)
}
func (m *MockCrowdsale) SetPrice(ctx context.Context, from, token common.Address, price *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, token, price)
	return args.Get(0).(common.Hash), args.Error(1)
}
func (m *MockCrowdsale) SellToken(ctx context.Context, from, token common.Address, amount *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, token, amount)
	return args.Get(0).(common.Hash), args.Error(1)
}
func (m *MockCrowdsale) WithdrawToken(ctx context.Context, from, token common.Address) (common.Hash, error) {
	args := m.Called(ctx, from, token)
	return args.Get(0).(common.Hash), args.Error(1)
}

// MockToken is a mock of services.TokenContract.
type MockToken struct {
	mock.Mock
}

func (m *MockToken) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, token, account)
	v, _ := args.Get(0).(*big.Int)
	return v, args.Error(1)
}
func (m *MockToken) Metadata(ctx context.Context, token common.Address) (models.TokenMetadata, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.TokenMetadata), args.Error(1)
}
func (m *MockToken) Approve(ctx context.Context, from, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, token, spender, amount)
	return args.Get(0).(common.Hash), args.Error(1)
}

// MockListener is a mock of services.TxListener.
type MockListener struct {
	mock.Mock
}

func (m *MockListener) WaitForTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	r, _ := args.Get(0).(*types.Receipt)
	return r, args.Error(1)
}

// MockSession is a mock of services.SessionState.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Account() (common.Address, bool) {
	args := m.Called()
	return args.Get(0).(common.Address), args.Bool(1)
}
func (m *MockSession) RecordedRole() (models.Role, bool) {
	args := m.Called()
	return args.Get(0).(models.Role), args.Bool(1)
}
func (m *MockSession) RefreshCatalog(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *MockSession) RefreshBalances(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeWallet hands out a fixed account list and lets tests trigger account switches.
type fakeWallet struct {
	mu        sync.Mutex
	accounts  []common.Address
	err       error
	listeners []func(common.Address)
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]common.Address(nil), w.accounts...), w.err
}

func (w *fakeWallet) OnAccountsChanged(fn func(common.Address)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *fakeWallet) switchTo(account common.Address) {
	w.mu.Lock()
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(account)
	}
}

func successReceipt(block int64) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(block), GasUsed: 21000}
}

func txHash(b byte) common.Hash {
	return common.BytesToHash([]byte{b})
}
