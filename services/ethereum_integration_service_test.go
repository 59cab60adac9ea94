package services

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient answers eth_call from canned ABI-encoded outputs keyed by method.
type fakeClient struct {
	bind.ContractBackend

	abi      abi.ABI
	outputs  map[string][]byte
	receipts []*types.Receipt
	polls    atomic.Int32
}

func (c *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	for name, m := range c.abi.Methods {
		if bytes.HasPrefix(msg.Data, m.ID) {
			if out, ok := c.outputs[name]; ok {
				return out, nil
			}
		}
	}
	return nil, errors.New("execution reverted")
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	n := int(c.polls.Add(1)) - 1
	if n < len(c.receipts) && c.receipts[n] != nil {
		return c.receipts[n], nil
	}
	return nil, ethereum.NotFound
}

func pack(t *testing.T, a abi.ABI, method string, values ...interface{}) []byte {
	t.Helper()
	out, err := a.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

var (
	testCrowdsale = common.HexToAddress("0x6138B085d032e33aB6F59d6d26b4522FD78F45f9")
	testSeller    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testToken     = common.HexToAddress("0xad0852764e45037e9feaa8af5d48029d2ab37365")
)

func TestEthereumReadsDecode(t *testing.T) {
	client := &fakeClient{abi: crowdsaleABI, outputs: map[string][]byte{
		"owner":     pack(t, crowdsaleABI, "owner", testSeller),
		"saleCount": pack(t, crowdsaleABI, "saleCount", big.NewInt(3)),
		"sales":     pack(t, crowdsaleABI, "sales", testSeller, testToken, big.NewInt(10), big.NewInt(5)),
		"getCost":   pack(t, crowdsaleABI, "getCost", big.NewInt(50)),
	}}
	svc := NewEthereumIntegrationService(client, nil, testCrowdsale, nil)
	ctx := context.Background()

	owner, err := svc.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeller, owner)

	count, err := svc.SaleCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", count.String())

	sale, err := svc.Sale(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, testToken, sale.TokenAddress)
	assert.Equal(t, "10", sale.Amount.String())
	assert.Equal(t, "5", sale.PricePerToken.String())

	cost, err := svc.Cost(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "50", cost.String())

	_, err = svc.PurchaseHistory(ctx, testSeller)
	assert.ErrorContains(t, err, "getPurchaseHistory")
}

func TestEthereumPurchaseHistoryDecodes(t *testing.T) {
	type entry struct {
		Amount    *big.Int
		Timestamp *big.Int
	}
	client := &fakeClient{abi: crowdsaleABI, outputs: map[string][]byte{
		"getPurchaseHistory": pack(t, crowdsaleABI, "getPurchaseHistory", []entry{
			{Amount: big.NewInt(7), Timestamp: big.NewInt(1700000000)},
			{Amount: big.NewInt(9), Timestamp: big.NewInt(1700000100)},
		}),
	}}
	svc := NewEthereumIntegrationService(client, nil, testCrowdsale, nil)

	history, err := svc.PurchaseHistory(context.Background(), testSeller)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "9", history[1].Amount.String())
	assert.Equal(t, int64(1700000100), history[1].Timestamp)
}

func TestEthereumTokenMetadata(t *testing.T) {
	client := &fakeClient{abi: erc20ABI, outputs: map[string][]byte{
		"symbol":    pack(t, erc20ABI, "symbol", "GREEN"),
		"decimals":  pack(t, erc20ABI, "decimals", uint8(18)),
		"balanceOf": pack(t, erc20ABI, "balanceOf", big.NewInt(1234)),
	}}
	svc := NewEthereumIntegrationService(client, nil, testCrowdsale, nil)
	ctx := context.Background()

	meta, err := svc.Metadata(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, "GREEN", meta.Symbol)
	assert.Equal(t, uint8(18), meta.Decimals)

	balance, err := svc.BalanceOf(ctx, testToken, testSeller)
	require.NoError(t, err)
	assert.Equal(t, "1234", balance.String())
}

func TestWaitForTransactionPollsUntilMined(t *testing.T) {
	mined := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(5)}
	client := &fakeClient{receipts: []*types.Receipt{nil, nil, mined}}
	svc := NewEthereumIntegrationService(client, nil, testCrowdsale, nil)
	svc.PollInterval = time.Millisecond

	receipt, err := svc.WaitForTransaction(context.Background(), common.HexToHash("0x01"))

	require.NoError(t, err)
	assert.Same(t, mined, receipt)
	assert.Equal(t, int32(3), client.polls.Load())
}

func TestWaitForTransactionHonoursContext(t *testing.T) {
	client := &fakeClient{}
	svc := NewEthereumIntegrationService(client, nil, testCrowdsale, nil)
	svc.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.WaitForTransaction(ctx, common.HexToHash("0x01"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSingle(t *testing.T) {
	v, err := single[string]([]interface{}{"ok"}, "symbol")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = single[string]([]interface{}{uint8(1)}, "symbol")
	assert.Error(t, err)

	_, err = single[string](nil, "symbol")
	assert.Error(t, err)
}
