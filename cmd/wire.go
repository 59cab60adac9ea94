package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/blockchain_listener"
	"github.com/ferreirogomes/greenfund/config"
	"github.com/ferreirogomes/greenfund/handlers"
	"github.com/ferreirogomes/greenfund/services"
	"github.com/ferreirogomes/greenfund/storage"
	"github.com/ferreirogomes/greenfund/wallet"
)

type app struct {
	cfg          config.Config
	logger       *zap.Logger
	client       *ethclient.Client
	wsClient     *ethclient.Client
	wallet       *wallet.KeyWallet
	chain        *services.EthereumIntegrationService
	reader       *services.ChainStateReader
	store        *storage.SnapshotStore
	session      *services.SessionContext
	orchestrator *services.TransactionOrchestrator
	presenter    *handlers.Presenter
}

func wireApp(ctx context.Context, opts *rootOptions) (*app, error) {
	v := viper.New()
	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
	}
	cfg, err := config.Load(v, opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar configuração: %w", err)
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := config.NewLogger(level)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao rpc %s: %w", cfg.RPCURL, err)
	}

	keys, err := wallet.NewKeyWallet(cfg.ChainID, cfg.PrivateKeys...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("falha ao carregar carteira: %w", err)
	}

	chain := services.NewEthereumIntegrationService(client, keys, cfg.CrowdsaleAddress, logger)
	chain.PollInterval = cfg.PollInterval

	reader := services.NewChainStateReader(chain, chain)
	store := storage.NewSnapshotStore()
	session := services.NewSessionContext(
		keys,
		reader,
		services.NewSaleCatalogSynchronizer(reader, logger),
		store,
		cfg.Tokens,
		logger,
	)
	orchestrator := services.NewTransactionOrchestrator(services.OrchestratorOptions{
		Reader:              reader,
		Crowdsale:           chain,
		Tokens:              chain,
		Listener:            chain,
		Session:             session,
		PaymentToken:        cfg.PaymentToken,
		SaleToken:           cfg.SaleToken,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		Logger:              logger,
	})

	return &app{
		cfg:          cfg,
		logger:       logger,
		client:       client,
		wallet:       keys,
		chain:        chain,
		reader:       reader,
		store:        store,
		session:      session,
		orchestrator: orchestrator,
		presenter: &handlers.Presenter{
			Tokens:       reader,
			PaymentToken: cfg.PaymentToken,
			SaleToken:    cfg.SaleToken,
		},
	}, nil
}

// listener conecta ao endpoint websocket e retorna um listener de contratos, ou nil quando nenhum
// está configurado.
func (a *app) listener(ctx context.Context) (*blockchain_listener.ContractListener, error) {
	if a.cfg.WSURL == "" {
		return nil, nil
	}
	ws, err := ethclient.DialContext(ctx, a.cfg.WSURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao websocket %s: %w", a.cfg.WSURL, err)
	}
	a.wsClient = ws

	addresses := []common.Address{a.cfg.CrowdsaleAddress}
	for _, t := range a.cfg.Tokens {
		addresses = append(addresses, t.Address)
	}
	return blockchain_listener.NewContractListener(ws, a.session, addresses, a.logger), nil
}

func (a *app) router() *handlers.Handlers {
	return &handlers.Handlers{
		Session: handlers.NewSessionHandler(a.session, a.wallet, a.presenter),
		Sale:    handlers.NewSaleHandler(a.session, a.orchestrator, a.presenter),
		Admin:   handlers.NewAdminHandler(a.orchestrator, a.presenter),
		Stream:  handlers.NewSnapshotStream(a.store, a.presenter, a.logger),
	}
}

func (a *app) Close() {
	if a.wsClient != nil {
		a.wsClient.Close()
	}
	a.client.Close()
	_ = a.logger.Sync()
}
