package cmd

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/ferreirogomes/greenfund/handlers"
)

func newAdminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operações do crowdsale exclusivas do dono",
	}
	cmd.AddCommand(
		newSetPriceCmd(opts),
		newSellCmd(opts),
		newWithdrawCmd(opts),
	)
	return cmd
}

func newSetPriceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <price>",
		Short: "Define o preço do token à venda em unidades do token de pagamento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			price, err := a.parseAmount(cmd, args[0], a.cfg.PaymentToken)
			if err != nil {
				return err
			}
			receipt, err := a.orchestrator.AdminSetPrice(cmd.Context(), price)
			if err != nil {
				return err
			}
			return printReceipt(cmd.OutOrStdout(), receipt)
		},
	}
}

func newSellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <amount>",
		Short: "Coloca uma quantidade do token à venda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := a.parseAmount(cmd, args[0], a.cfg.SaleToken)
			if err != nil {
				return err
			}
			receipt, err := a.orchestrator.AdminSellToken(cmd.Context(), amount)
			if err != nil {
				return err
			}
			return printReceipt(cmd.OutOrStdout(), receipt)
		},
	}
}

func newWithdrawCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw",
		Short: "Retira o token à venda mantido pelo crowdsale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.orchestrator.AdminWithdraw(cmd.Context())
			if err != nil {
				return err
			}
			return printReceipt(cmd.OutOrStdout(), receipt)
		},
	}
}

func (a *app) parseAmount(cmd *cobra.Command, value string, token common.Address) (*big.Int, error) {
	meta, err := a.reader.TokenMetadata(cmd.Context(), token)
	if err != nil {
		return nil, err
	}
	return handlers.ParseUnits(value, meta.Decimals)
}
