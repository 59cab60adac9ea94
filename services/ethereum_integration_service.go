package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/models"
)

const crowdsaleABIJSON = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"saleCount","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"sales","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"seller","type":"address"},{"name":"tokenAddress","type":"address"},
              {"name":"amount","type":"uint256"},{"name":"pricePerToken","type":"uint256"}]},
  {"type":"function","name":"getCost","stateMutability":"view","inputs":[{"name":"saleId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPurchaseHistory","stateMutability":"view","inputs":[{"name":"buyer","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"amount","type":"uint256"},{"name":"timestamp","type":"uint256"}]}]},
  {"type":"function","name":"buyToken","stateMutability":"nonpayable","inputs":[{"name":"saleId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setPrice","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenAddress","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"sellToken","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenAddress","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawToken","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenAddress","type":"address"}],"outputs":[]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	crowdsaleABI abi.ABI
	erc20ABI     abi.ABI
)

func init() {
	var err error
	if crowdsaleABI, err = abi.JSON(strings.NewReader(crowdsaleABIJSON)); err != nil {
		panic(fmt.Sprintf("parse crowdsale abi: %v", err))
	}
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
}

const defaultPollInterval = 2 * time.Second

// EthClient é o subconjunto de *ethclient.Client usado pelo serviço de integração.
type EthClient interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthereumIntegrationService liga os contratos de crowdsale e ERC-20 via JSON-RPC. Leituras são
// eth_call; escritas são assinadas pela carteira e enviadas sem aguardar.
type EthereumIntegrationService struct {
	Client       EthClient
	Signer       Signer
	PollInterval time.Duration

	crowdsaleAddr common.Address
	crowdsale     *bind.BoundContract
	logger        *zap.Logger
}

var (
	_ CrowdsaleContract = (*EthereumIntegrationService)(nil)
	_ TokenContract     = (*EthereumIntegrationService)(nil)
	_ TxListener        = (*EthereumIntegrationService)(nil)
)

// NewEthereumIntegrationService liga o crowdsale implantado em crowdsaleAddr.
func NewEthereumIntegrationService(client EthClient, signer Signer, crowdsaleAddr common.Address, logger *zap.Logger) *EthereumIntegrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EthereumIntegrationService{
		Client:        client,
		Signer:        signer,
		PollInterval:  defaultPollInterval,
		crowdsaleAddr: crowdsaleAddr,
		crowdsale:     bind.NewBoundContract(crowdsaleAddr, crowdsaleABI, client, client, client),
		logger:        logger.Named("ethereum"),
	}
}

// Address retorna o endereço do contrato de crowdsale.
func (s *EthereumIntegrationService) Address() common.Address {
	return s.crowdsaleAddr
}

func (s *EthereumIntegrationService) token(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, erc20ABI, s.Client, s.Client, s.Client)
}

func (s *EthereumIntegrationService) call(ctx context.Context, c *bind.BoundContract, results *[]interface{}, method string, args ...interface{}) error {
	if err := c.Call(&bind.CallOpts{Context: ctx}, results, method, args...); err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	return nil
}

func (s *EthereumIntegrationService) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := s.call(ctx, s.crowdsale, &out, "owner"); err != nil {
		return common.Address{}, err
	}
	return single[common.Address](out, "owner")
}

func (s *EthereumIntegrationService) SaleCount(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := s.call(ctx, s.crowdsale, &out, "saleCount"); err != nil {
		return nil, err
	}
	return single[*big.Int](out, "saleCount")
}

func (s *EthereumIntegrationService) Sale(ctx context.Context, id *big.Int) (SaleRecord, error) {
	var rec SaleRecord
	out := []interface{}{&rec}
	if err := s.call(ctx, s.crowdsale, &out, "sales", id); err != nil {
		return SaleRecord{}, err
	}
	return rec, nil
}

func (s *EthereumIntegrationService) Cost(ctx context.Context, id *big.Int) (*big.Int, error) {
	var out []interface{}
	if err := s.call(ctx, s.crowdsale, &out, "getCost", id); err != nil {
		return nil, err
	}
	return single[*big.Int](out, "getCost")
}

// purchaseRecord espelha a struct de compra do contrato para decodificação ABI.
type purchaseRecord struct {
	Amount    *big.Int
	Timestamp *big.Int
}

func (s *EthereumIntegrationService) PurchaseHistory(ctx context.Context, buyer common.Address) ([]models.PurchaseHistoryEntry, error) {
	var records []purchaseRecord
	out := []interface{}{&records}
	if err := s.call(ctx, s.crowdsale, &out, "getPurchaseHistory", buyer); err != nil {
		return nil, err
	}

	entries := make([]models.PurchaseHistoryEntry, 0, len(records))
	for i, r := range records {
		if r.Timestamp == nil || !r.Timestamp.IsInt64() {
			return nil, fmt.Errorf("decode getPurchaseHistory: entry %d has invalid timestamp", i)
		}
		entries = append(entries, models.PurchaseHistoryEntry{Amount: r.Amount, Timestamp: r.Timestamp.Int64()})
	}
	return entries, nil
}

func (s *EthereumIntegrationService) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := s.call(ctx, s.token(token), &out, "balanceOf", account); err != nil {
		return nil, err
	}
	return single[*big.Int](out, "balanceOf")
}

func (s *EthereumIntegrationService) Metadata(ctx context.Context, token common.Address) (models.TokenMetadata, error) {
	c := s.token(token)

	var out []interface{}
	if err := s.call(ctx, c, &out, "symbol"); err != nil {
		return models.TokenMetadata{}, err
	}
	symbol, err := single[string](out, "symbol")
	if err != nil {
		return models.TokenMetadata{}, err
	}

	out = nil
	if err := s.call(ctx, c, &out, "decimals"); err != nil {
		return models.TokenMetadata{}, err
	}
	decimals, err := single[uint8](out, "decimals")
	if err != nil {
		return models.TokenMetadata{}, err
	}

	return models.TokenMetadata{Symbol: symbol, Decimals: decimals}, nil
}

func (s *EthereumIntegrationService) transact(ctx context.Context, c *bind.BoundContract, from common.Address, method string, args ...interface{}) (common.Hash, error) {
	opts, err := s.Signer.Transactor(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signer for %s: %w", from.Hex(), err)
	}
	opts.Context = ctx

	tx, err := c.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}
	s.logger.Debug("Transação enviada", zap.String("method", method), zap.String("tx", tx.Hash().Hex()), zap.Uint64("nonce", tx.Nonce()))
	return tx.Hash(), nil
}

func (s *EthereumIntegrationService) BuyToken(ctx context.Context, from common.Address, id *big.Int) (common.Hash, error) {
	return s.transact(ctx, s.crowdsale, from, "buyToken", id)
}

func (s *EthereumIntegrationService) SetPrice(ctx context.Context, from, token common.Address, price *big.Int) (common.Hash, error) {
	return s.transact(ctx, s.crowdsale, from, "setPrice", token, price)
}

func (s *EthereumIntegrationService) SellToken(ctx context.Context, from, token common.Address, amount *big.Int) (common.Hash, error) {
	return s.transact(ctx, s.crowdsale, from, "sellToken", token, amount)
}

func (s *EthereumIntegrationService) WithdrawToken(ctx context.Context, from, token common.Address) (common.Hash, error) {
	return s.transact(ctx, s.crowdsale, from, "withdrawToken", token)
}

func (s *EthereumIntegrationService) Approve(ctx context.Context, from, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	return s.transact(ctx, s.token(token), from, "approve", spender, amount)
}

// WaitForTransaction consulta o recibo de txHash até a transação ser minerada ou ctx terminar.
func (s *EthereumIntegrationService) WaitForTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := s.Client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug("Recibo ainda indisponível", zap.String("tx", txHash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func single[T any](out []interface{}, method string) (T, error) {
	var zero T
	if len(out) != 1 {
		return zero, fmt.Errorf("decode %s: expected 1 value, got %d", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("decode %s: unexpected type %T", method, out[0])
	}
	return v, nil
}
