package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/handlers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var connectOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a API do cliente via HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := wireApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if connectOnStart {
				if _, err := a.session.Connect(ctx); err != nil {
					a.logger.Warn("Falha na conexão inicial", zap.Error(err))
				}
			}

			listener, err := a.listener(ctx)
			if err != nil {
				return err
			}
			if listener != nil {
				go func() {
					if err := listener.StartListening(ctx); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Error("Listener de contratos parou", zap.Error(err))
					}
				}()
			}

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           handlers.NewRouter(*a.router()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info("Servidor HTTP iniciado", zap.String("addr", a.cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&connectOnStart, "connect", true, "conecta a primeira conta da carteira ao iniciar")
	return cmd
}
