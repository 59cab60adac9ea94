package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/models"
)

const defaultConfirmationTimeout = 2 * time.Minute

// SessionState é o que o orquestrador precisa da sessão: quem está agindo, o papel registrado
// para essa conta e um jeito de atualizar o estado após uma escrita confirmada.
type SessionState interface {
	Account() (common.Address, bool)
	RecordedRole() (models.Role, bool)
	RefreshCatalog(ctx context.Context) error
	RefreshBalances(ctx context.Context) error
}

// OrchestratorOptions configura um TransactionOrchestrator.
type OrchestratorOptions struct {
	Reader    *ChainStateReader
	Crowdsale CrowdsaleContract
	Tokens    TokenContract
	Listener  TxListener
	Session   SessionState

	PaymentToken common.Address // Token usado no pagamento
	SaleToken    common.Address // Token que o dono precifica, vende e retira

	ConfirmationTimeout time.Duration
	Logger              *zap.Logger
}

// TransactionOrchestrator envia chamadas que alteram estado: pré-condições, envio, espera limitada
// pela confirmação e, por fim, atualização. Uma escrita que toca uma venda ou saldo com outra
// escrita em andamento é recusada com ErrWriteInProgress. Envios com falha nunca são repetidos.
type TransactionOrchestrator struct {
	reader    *ChainStateReader
	crowdsale CrowdsaleContract
	tokens    TokenContract
	listener  TxListener
	session   SessionState

	paymentToken common.Address
	saleToken    common.Address

	confirmTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time

	mu      sync.Mutex
	pending map[string]models.PendingTransaction
	busy    map[string]int // Entidade -> -1 em uso exclusivo, n > 0 em uso compartilhado n vezes
}

// NewTransactionOrchestrator cria um orquestrador a partir de opts.
func NewTransactionOrchestrator(opts OrchestratorOptions) *TransactionOrchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ConfirmationTimeout
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}
	return &TransactionOrchestrator{
		reader:         opts.Reader,
		crowdsale:      opts.Crowdsale,
		tokens:         opts.Tokens,
		listener:       opts.Listener,
		session:        opts.Session,
		paymentToken:   opts.PaymentToken,
		saleToken:      opts.SaleToken,
		confirmTimeout: timeout,
		logger:         logger.Named("orchestrator"),
		now:            time.Now,
		pending:        make(map[string]models.PendingTransaction),
		busy:           make(map[string]int),
	}
}

// Purchase compra o restante de uma venda para buyer. O custo e o saldo do token de pagamento são
// lidos na hora; nada é enviado quando o saldo não cobre o custo.
func (o *TransactionOrchestrator) Purchase(ctx context.Context, saleID uint64, buyer common.Address) (models.Receipt, error) {
	if saleID == 0 {
		return models.Receipt{}, fmt.Errorf("sale id 0: %w", ErrInvalidAmount)
	}
	release, err := o.claimPurchase(saleID, buyer)
	if err != nil {
		return models.Receipt{}, err
	}
	defer release()

	return o.purchase(ctx, saleID, buyer)
}

func (o *TransactionOrchestrator) purchase(ctx context.Context, saleID uint64, buyer common.Address) (models.Receipt, error) {
	cost, err := o.reader.GetCost(ctx, saleID)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("purchase sale %d: %w", saleID, err)
	}
	balance, err := o.reader.GetTokenBalance(ctx, buyer, o.paymentToken)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("purchase sale %d: %w", saleID, err)
	}
	if balance.Raw.Cmp(cost) < 0 {
		o.logger.Info("Compra recusada por saldo insuficiente",
			zap.Uint64("sale_id", saleID),
			zap.String("buyer", buyer.Hex()),
			zap.Stringer("cost", cost),
			zap.Stringer("balance", balance.Raw))
		return models.Receipt{}, &InsufficientFundsError{SaleID: saleID, Required: cost, Available: balance.Raw}
	}

	receipt, err := o.submitAndWait(ctx, models.TxBuy, &saleID, func(ctx context.Context) (common.Hash, error) {
		return o.crowdsale.BuyToken(ctx, buyer, new(big.Int).SetUint64(saleID))
	})
	if err != nil {
		return models.Receipt{}, err
	}

	o.refresh(ctx, true, true)
	return receipt, nil
}

// ApproveAndPurchase concede ao crowdsale uma permissão de amount no token de pagamento, aguarda a
// confirmação dessa aprovação e então executa a compra.
func (o *TransactionOrchestrator) ApproveAndPurchase(ctx context.Context, saleID uint64, amount *big.Int, buyer common.Address) (models.Receipt, error) {
	if saleID == 0 {
		return models.Receipt{}, fmt.Errorf("sale id 0: %w", ErrInvalidAmount)
	}
	if amount == nil || amount.Sign() <= 0 {
		return models.Receipt{}, ErrInvalidAmount
	}
	release, err := o.claimPurchase(saleID, buyer)
	if err != nil {
		return models.Receipt{}, err
	}
	defer release()

	spender := o.crowdsale.Address()
	allowance := new(big.Int).Set(amount)
	if _, err := o.submitAndWait(ctx, models.TxApprove, &saleID, func(ctx context.Context) (common.Hash, error) {
		return o.tokens.Approve(ctx, buyer, o.paymentToken, spender, allowance)
	}); err != nil {
		return models.Receipt{}, err
	}

	return o.purchase(ctx, saleID, buyer)
}

// AdminSetPrice define o preço por unidade do token à venda. Apenas o dono.
func (o *TransactionOrchestrator) AdminSetPrice(ctx context.Context, price *big.Int) (models.Receipt, error) {
	owner, err := o.authorize("set the sale price")
	if err != nil {
		return models.Receipt{}, err
	}
	if price == nil || price.Sign() <= 0 {
		return models.Receipt{}, ErrInvalidAmount
	}
	release, err := o.claim([]string{catalogEntity})
	if err != nil {
		return models.Receipt{}, err
	}
	defer release()

	p := new(big.Int).Set(price)
	receipt, err := o.submitAndWait(ctx, models.TxSetPrice, nil, func(ctx context.Context) (common.Hash, error) {
		return o.crowdsale.SetPrice(ctx, owner, o.saleToken, p)
	})
	if err != nil {
		return models.Receipt{}, err
	}

	o.refresh(ctx, true, false)
	return receipt, nil
}

// AdminSellToken coloca amount do token à venda. Apenas o dono.
func (o *TransactionOrchestrator) AdminSellToken(ctx context.Context, amount *big.Int) (models.Receipt, error) {
	owner, err := o.authorize("sell tokens")
	if err != nil {
		return models.Receipt{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return models.Receipt{}, ErrInvalidAmount
	}
	release, err := o.claim([]string{catalogEntity, balanceEntity(owner)})
	if err != nil {
		return models.Receipt{}, err
	}
	defer release()

	a := new(big.Int).Set(amount)
	receipt, err := o.submitAndWait(ctx, models.TxSell, nil, func(ctx context.Context) (common.Hash, error) {
		return o.crowdsale.SellToken(ctx, owner, o.saleToken, a)
	})
	if err != nil {
		return models.Receipt{}, err
	}

	o.refresh(ctx, true, true)
	return receipt, nil
}

// AdminWithdraw retira para o dono o saldo do token mantido pelo crowdsale. Apenas o dono.
func (o *TransactionOrchestrator) AdminWithdraw(ctx context.Context) (models.Receipt, error) {
	owner, err := o.authorize("withdraw")
	if err != nil {
		return models.Receipt{}, err
	}
	release, err := o.claim([]string{balanceEntity(owner)})
	if err != nil {
		return models.Receipt{}, err
	}
	defer release()

	receipt, err := o.submitAndWait(ctx, models.TxWithdraw, nil, func(ctx context.Context) (common.Hash, error) {
		return o.crowdsale.WithdrawToken(ctx, owner, o.saleToken)
	})
	if err != nil {
		return models.Receipt{}, err
	}

	o.refresh(ctx, false, true)
	return receipt, nil
}

// Pending retorna as transações aguardando confirmação, da mais antiga para a mais nova.
func (o *TransactionOrchestrator) Pending() []models.PendingTransaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.PendingTransaction, 0, len(o.pending))
	for _, p := range o.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// authorize verifica o papel registrado pela sessão. Nunca consulta a chain.
func (o *TransactionOrchestrator) authorize(op string) (common.Address, error) {
	account, ok := o.session.Account()
	if !ok {
		return common.Address{}, ErrNotConnected
	}
	role, ok := o.session.RecordedRole()
	if !ok || role != models.RoleOwner {
		o.logger.Warn("Operação exclusiva do dono recusada", zap.String("account", account.Hex()), zap.String("op", op))
		return common.Address{}, &UnauthorizedError{Account: account, Op: op}
	}
	return account, nil
}

const catalogEntity = "catalog"

func listingEntity(id uint64) string { return fmt.Sprintf("listing:%d", id) }

func balanceEntity(account common.Address) string { return "balance:" + account.Hex() }

// claimPurchase reserva com exclusividade a venda e o saldo do comprador. O catálogo é reservado de
// forma compartilhada: compras correm lado a lado, mas não junto de uma mudança de preço ou nova venda.
func (o *TransactionOrchestrator) claimPurchase(saleID uint64, buyer common.Address) (func(), error) {
	return o.claim([]string{listingEntity(saleID), balanceEntity(buyer)}, catalogEntity)
}

// claim marca as entidades como tendo uma escrita em andamento até a função retornada ser chamada.
// Se alguma conflita com uma escrita já em andamento, nada é reservado e retorna ErrWriteInProgress.
func (o *TransactionOrchestrator) claim(exclusive []string, shared ...string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range exclusive {
		if o.busy[e] != 0 {
			o.logger.Info("Escrita recusada, entidade ocupada", zap.String("entity", e))
			return nil, fmt.Errorf("%s: %w", e, ErrWriteInProgress)
		}
	}
	for _, e := range shared {
		if o.busy[e] < 0 {
			o.logger.Info("Escrita recusada, entidade ocupada", zap.String("entity", e))
			return nil, fmt.Errorf("%s: %w", e, ErrWriteInProgress)
		}
	}
	for _, e := range exclusive {
		o.busy[e] = -1
	}
	for _, e := range shared {
		o.busy[e]++
	}

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for _, e := range exclusive {
			delete(o.busy, e)
		}
		for _, e := range shared {
			if o.busy[e]--; o.busy[e] <= 0 {
				delete(o.busy, e)
			}
		}
	}, nil
}

func (o *TransactionOrchestrator) submitAndWait(
	ctx context.Context,
	kind models.TxKind,
	listingID *uint64,
	submit func(context.Context) (common.Hash, error),
) (models.Receipt, error) {
	txHash, err := submit(ctx)
	if err != nil {
		o.logger.Warn("Falha ao enviar transação", zap.String("kind", string(kind)), zap.Error(err))
		return models.Receipt{}, &TransactionFailedError{Kind: kind, Err: err}
	}

	id := o.track(kind, listingID, txHash)
	defer o.untrack(id)

	o.logger.Info("Transação enviada", zap.String("kind", string(kind)), zap.String("tx", txHash.Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	rcpt, err := o.listener.WaitForTransaction(waitCtx, txHash)
	if err != nil {
		o.setStatus(id, models.TxFailed)
		if waitCtx.Err() != nil {
			o.logger.Warn("Espera pela confirmação interrompida", zap.String("kind", string(kind)), zap.String("tx", txHash.Hex()), zap.Error(err))
			return models.Receipt{}, &ConfirmationTimeoutError{Kind: kind, TxHash: txHash, Err: err}
		}
		o.logger.Warn("Falha na confirmação", zap.String("kind", string(kind)), zap.String("tx", txHash.Hex()), zap.Error(err))
		return models.Receipt{}, &TransactionFailedError{Kind: kind, TxHash: txHash, Err: err}
	}
	if rcpt == nil || rcpt.Status != types.ReceiptStatusSuccessful {
		o.setStatus(id, models.TxFailed)
		o.logger.Warn("Transação revertida", zap.String("kind", string(kind)), zap.String("tx", txHash.Hex()))
		return models.Receipt{}, &TransactionFailedError{Kind: kind, TxHash: txHash, Err: ErrReverted}
	}

	o.setStatus(id, models.TxConfirmed)
	o.logger.Info("Transação confirmada",
		zap.String("kind", string(kind)),
		zap.String("tx", txHash.Hex()),
		zap.Uint64("block", blockNumber(rcpt)))

	return models.Receipt{
		Kind:        kind,
		TxHash:      txHash,
		BlockNumber: blockNumber(rcpt),
		GasUsed:     rcpt.GasUsed,
		ConfirmedAt: o.now(),
	}, nil
}

func (o *TransactionOrchestrator) refresh(ctx context.Context, catalog, balances bool) {
	if catalog {
		if err := o.session.RefreshCatalog(ctx); err != nil {
			o.logger.Warn("Falha ao atualizar catálogo após confirmação", zap.Error(err))
		}
	}
	if balances {
		if err := o.session.RefreshBalances(ctx); err != nil {
			o.logger.Warn("Falha ao atualizar saldos após confirmação", zap.Error(err))
		}
	}
}

func (o *TransactionOrchestrator) track(kind models.TxKind, listingID *uint64, txHash common.Hash) string {
	p := models.PendingTransaction{
		ID:          uuid.New().String(),
		Kind:        kind,
		TxHash:      txHash,
		SubmittedAt: o.now(),
		Status:      models.TxSubmitted,
	}
	if listingID != nil {
		id := *listingID
		p.ListingID = &id
	}

	o.mu.Lock()
	o.pending[p.ID] = p
	o.mu.Unlock()
	return p.ID
}

func (o *TransactionOrchestrator) setStatus(id string, status models.TxStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.pending[id]; ok {
		p.Status = status
		o.pending[id] = p
	}
}

func (o *TransactionOrchestrator) untrack(id string) {
	o.mu.Lock()
	delete(o.pending, id)
	o.mu.Unlock()
}

func blockNumber(r *types.Receipt) uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
