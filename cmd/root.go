package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "greenfund",
		Short:         "Cliente do crowdsale Green Fund",
		Long:          "greenfund lê o crowdsale Green Fund, compra GREEN listado com ECO e executa as operações de preço, venda e retirada do dono.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "caminho para um arquivo de configuração TOML")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "arquivo dotenv carregado antes do ambiente")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "sobrescreve log_level")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newSalesCmd(opts),
		newHistoryCmd(opts),
		newBuyCmd(opts),
		newApproveBuyCmd(opts),
		newAdminCmd(opts),
	)

	return rootCmd
}

// connect monta a aplicação e conecta a primeira conta da carteira.
func connect(ctx context.Context, opts *rootOptions) (*app, error) {
	a, err := wireApp(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := a.session.Connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
