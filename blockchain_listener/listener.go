package blockchain_listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/models"
	"github.com/ferreirogomes/greenfund/services"
)

// LogSubscriber é satisfeito por *ethclient.Client sobre um endpoint websocket.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Resyncer relê o estado da sessão a partir da chain.
type Resyncer interface {
	Resync(ctx context.Context) (*models.SessionSnapshot, error)
}

// ContractListener observa os logs emitidos pelos contratos de crowdsale e de token e ressincroniza a
// sessão quando algum chega, para que compras feitas em outro lugar apareçam sem atualização manual.
type ContractListener struct {
	Subscriber LogSubscriber
	Session    Resyncer
	Addresses  []common.Address

	Debounce   time.Duration // Logs dentro desta janela causam uma única ressincronização
	RetryDelay time.Duration

	logger *zap.Logger
}

// NewContractListener cria um listener para os logs de addresses.
func NewContractListener(sub LogSubscriber, session Resyncer, addresses []common.Address, logger *zap.Logger) *ContractListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractListener{
		Subscriber: sub,
		Session:    session,
		Addresses:  append([]common.Address(nil), addresses...),
		Debounce:   time.Second,
		RetryDelay: 5 * time.Second,
		logger:     logger.Named("listener"),
	}
}

// StartListening se inscreve e se reinscreve após falhas até ctx terminar.
func (l *ContractListener) StartListening(ctx context.Context) error {
	l.logger.Info("Iniciando listener de contratos", zap.Int("contracts", len(l.Addresses)))
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("Inscrição de logs encerrada", zap.Error(err), zap.Duration("retry_in", l.RetryDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.RetryDelay):
		}
	}
}

func (l *ContractListener) listen(ctx context.Context) error {
	logs := make(chan types.Log, 64)
	sub, err := l.Subscriber.SubscribeFilterLogs(ctx, ethereum.FilterQuery{Addresses: l.Addresses}, logs)
	if err != nil {
		return fmt.Errorf("subscribe to contract logs: %w", err)
	}
	defer sub.Unsubscribe()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case lg := <-logs:
			l.logger.Debug("Log de contrato recebido",
				zap.String("contract", lg.Address.Hex()),
				zap.String("tx", lg.TxHash.Hex()),
				zap.Uint64("block", lg.BlockNumber),
				zap.Bool("removed", lg.Removed))
			if fire == nil {
				timer = time.NewTimer(l.Debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			l.ProcessEvents(ctx)
		}
	}
}

// ProcessEvents ressincroniza a sessão após atividade nos contratos.
func (l *ContractListener) ProcessEvents(ctx context.Context) {
	snap, err := l.Session.Resync(ctx)
	switch {
	case errors.Is(err, services.ErrNotConnected):
		l.logger.Debug("Nenhuma conta conectada, ressincronização ignorada")
	case err != nil:
		l.logger.Warn("Falha ao ressincronizar após atividade nos contratos", zap.Error(err))
	default:
		l.logger.Info("Sessão ressincronizada", zap.Uint64("version", snap.Version), zap.Int("listings", len(snap.Catalog.Listings)))
	}
}
