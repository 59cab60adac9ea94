package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ferreirogomes/greenfund/models"
	"github.com/ferreirogomes/greenfund/storage"
)

// ErrAccountChanged é retornado quando uma atualização termina depois da troca da conta ativa; o
// resultado é descartado.
var ErrAccountChanged = errors.New("active account changed during refresh")

const defaultResyncTimeout = 30 * time.Second

// SessionContext acompanha a conta conectada e publica seus snapshots.
type SessionContext struct {
	wallet  WalletProvider
	reader  *ChainStateReader
	catalog *SaleCatalogSynchronizer
	store   *storage.SnapshotStore
	tokens  []models.TrackedToken
	logger  *zap.Logger

	// ResyncTimeout limita a ressincronização disparada por uma troca de conta na carteira.
	ResyncTimeout time.Duration

	mu         sync.Mutex
	account    common.Address
	epoch      uint64 // Época do store iniciada quando a conta ficou ativa
	connected  bool
	subscribed bool
	listeners  []func(common.Address)
}

// NewSessionContext monta uma sessão sobre seus colaboradores. tokens lista os saldos acompanhados.
func NewSessionContext(
	wallet WalletProvider,
	reader *ChainStateReader,
	catalog *SaleCatalogSynchronizer,
	store *storage.SnapshotStore,
	tokens []models.TrackedToken,
	logger *zap.Logger,
) *SessionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionContext{
		wallet:        wallet,
		reader:        reader,
		catalog:       catalog,
		store:         store,
		tokens:        append([]models.TrackedToken(nil), tokens...),
		logger:        logger.Named("session"),
		ResyncTimeout: defaultResyncTimeout,
	}
}

// Connect pede acesso à carteira, ativa a primeira conta e a sincroniza.
func (s *SessionContext) Connect(ctx context.Context) (common.Address, error) {
	accounts, err := s.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("request wallet accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	account := accounts[0]

	s.mu.Lock()
	if !s.subscribed {
		s.wallet.OnAccountsChanged(s.handleAccountChanged)
		s.subscribed = true
	}
	s.mu.Unlock()

	changed := s.activate(account)
	s.logger.Info("Carteira conectada", zap.String("account", account.Hex()))

	if _, err := s.Resync(ctx); err != nil {
		return account, err
	}
	if changed {
		s.notify(account)
	}
	return account, nil
}

// OnAccountChanged registra fn para rodar sempre que outra conta ficar ativa, depois que essa conta
// for sincronizada.
func (s *SessionContext) OnAccountChanged(fn func(common.Address)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Account retorna a conta ativa.
func (s *SessionContext) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.connected
}

// Snapshot retorna o último snapshot publicado, ou nil antes da primeira sincronização.
func (s *SessionContext) Snapshot() *models.SessionSnapshot {
	return s.store.Load()
}

// Role compara account com o dono do contrato, consultado a cada chamada.
func (s *SessionContext) Role(ctx context.Context, account common.Address) (models.Role, error) {
	owner, err := s.reader.GetOwner(ctx)
	if err != nil {
		return "", err
	}
	if owner == account {
		return models.RoleOwner, nil
	}
	return models.RoleBuyer, nil
}

// RecordedRole retorna o papel gravado no último snapshot da conta ativa. Não consulta a chain.
func (s *SessionContext) RecordedRole() (models.Role, bool) {
	account, ok := s.Account()
	if !ok {
		return "", false
	}
	snap := s.store.Load()
	if snap == nil || snap.Account != account {
		return "", false
	}
	return snap.Role, snap.Role != ""
}

// Resync busca em paralelo saldos, catálogo, histórico e papel da conta ativa e os publica como um
// único snapshot. Uma entidade que falha entra em Unavailable e mantém o valor anterior; as demais
// são atualizadas mesmo assim.
func (s *SessionContext) Resync(ctx context.Context) (*models.SessionSnapshot, error) {
	account, epoch, ok := s.active()
	if !ok {
		return nil, ErrNotConnected
	}

	var (
		mu          sync.Mutex
		unavailable = map[string]string{}
		balances    []models.TokenBalance
		catalog     models.Catalog
		history     []models.PurchaseHistoryEntry
		role        models.Role
	)
	fail := func(entity string, err error) {
		s.logger.Warn("Entidade indisponível", zap.String("entity", entity), zap.String("account", account.Hex()), zap.Error(err))
		mu.Lock()
		unavailable[entity] = err.Error()
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		b, err := s.fetchBalances(ctx, account)
		if err != nil {
			fail(models.EntityBalances, err)
			return nil
		}
		balances = b
		return nil
	})
	g.Go(func() error {
		c, err := s.catalog.Refresh(ctx)
		if err != nil {
			fail(models.EntityCatalog, err)
			return nil
		}
		catalog = c
		return nil
	})
	g.Go(func() error {
		h, err := s.reader.GetPurchaseHistory(ctx, account)
		if err != nil {
			fail(models.EntityHistory, err)
			return nil
		}
		history = h
		return nil
	})
	g.Go(func() error {
		r, err := s.Role(ctx, account)
		if err != nil {
			fail(models.EntityRole, err)
			return nil
		}
		role = r
		return nil
	})
	_ = g.Wait()

	snap, ok := s.store.UpdateIn(epoch, func(prev *models.SessionSnapshot) *models.SessionSnapshot {
		if !s.isActive(account) {
			return nil
		}
		next := &models.SessionSnapshot{
			Account:  account,
			Role:     role,
			Balances: balances,
			Catalog:  catalog,
			History:  history,
		}
		if len(unavailable) > 0 {
			next.Unavailable = maps.Clone(unavailable)
		}
		if prev != nil && prev.Account == account {
			if _, failed := unavailable[models.EntityBalances]; failed {
				next.Balances = prev.Balances
			}
			if _, failed := unavailable[models.EntityCatalog]; failed {
				next.Catalog = prev.Catalog
			}
			if _, failed := unavailable[models.EntityHistory]; failed {
				next.History = prev.History
			}
			if _, failed := unavailable[models.EntityRole]; failed {
				next.Role = prev.Role
			}
		}
		return next
	})
	if !ok {
		s.logger.Info("Descartando ressincronização de conta inativa", zap.String("account", account.Hex()))
		return nil, ErrAccountChanged
	}
	return snap, nil
}

// RefreshCatalog relê o catálogo de vendas e o publica.
func (s *SessionContext) RefreshCatalog(ctx context.Context) error {
	account, epoch, ok := s.active()
	if !ok {
		return ErrNotConnected
	}
	catalog, err := s.catalog.Refresh(ctx)
	return s.publishEntity(account, epoch, models.EntityCatalog, err, func(next *models.SessionSnapshot) {
		next.Catalog = catalog
	})
}

// RefreshBalances relê todos os saldos acompanhados e os publica.
func (s *SessionContext) RefreshBalances(ctx context.Context) error {
	account, epoch, ok := s.active()
	if !ok {
		return ErrNotConnected
	}
	balances, err := s.fetchBalances(ctx, account)
	return s.publishEntity(account, epoch, models.EntityBalances, err, func(next *models.SessionSnapshot) {
		next.Balances = balances
	})
}

func (s *SessionContext) publishEntity(account common.Address, epoch uint64, entity string, fetchErr error, apply func(*models.SessionSnapshot)) error {
	if fetchErr != nil {
		s.logger.Warn("Entidade indisponível", zap.String("entity", entity), zap.String("account", account.Hex()), zap.Error(fetchErr))
	}

	_, ok := s.store.UpdateIn(epoch, func(prev *models.SessionSnapshot) *models.SessionSnapshot {
		if !s.isActive(account) || prev == nil || prev.Account != account {
			return nil
		}
		next := *prev
		next.UpdatedAt = time.Time{}
		next.Unavailable = maps.Clone(prev.Unavailable)
		if fetchErr != nil {
			if next.Unavailable == nil {
				next.Unavailable = map[string]string{}
			}
			next.Unavailable[entity] = fetchErr.Error()
		} else {
			delete(next.Unavailable, entity)
			if len(next.Unavailable) == 0 {
				next.Unavailable = nil
			}
			apply(&next)
		}
		return &next
	})

	if fetchErr != nil {
		return fetchErr
	}
	if !ok {
		return ErrAccountChanged
	}
	return nil
}

// fetchBalances retorna todos os saldos acompanhados ou um erro; saldos nunca são atualizados pela metade.
func (s *SessionContext) fetchBalances(ctx context.Context, account common.Address) ([]models.TokenBalance, error) {
	balances := make([]models.TokenBalance, 0, len(s.tokens))
	for _, t := range s.tokens {
		b, err := s.reader.GetTokenBalance(ctx, account, t.Address)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", t.Symbol, err)
		}
		if t.Symbol != "" {
			b.Symbol = t.Symbol
		}
		balances = append(balances, b)
	}
	return balances, nil
}

func (s *SessionContext) activate(account common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.connected || s.account != account
	s.account = account
	s.connected = true
	if changed {
		s.epoch = s.store.Reset()
	}
	return changed
}

func (s *SessionContext) active() (common.Address, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.epoch, s.connected
}

func (s *SessionContext) isActive(account common.Address) bool {
	current, ok := s.Account()
	return ok && current == account
}

func (s *SessionContext) handleAccountChanged(account common.Address) {
	if !s.activate(account) {
		return
	}
	s.logger.Info("Conta da carteira alterada", zap.String("account", account.Hex()))

	ctx, cancel := context.WithTimeout(context.Background(), s.ResyncTimeout)
	defer cancel()
	if _, err := s.Resync(ctx); err != nil {
		s.logger.Warn("Falha ao ressincronizar após troca de conta", zap.String("account", account.Hex()), zap.Error(err))
		if errors.Is(err, ErrAccountChanged) {
			return
		}
	}
	s.notify(account)
}

func (s *SessionContext) notify(account common.Address) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(account)
	}
}
