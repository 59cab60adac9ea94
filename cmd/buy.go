package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ferreirogomes/greenfund/handlers"
	"github.com/ferreirogomes/greenfund/models"
)

func newBuyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <sale-id>",
		Short: "Compra o restante de uma venda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSaleID(args[0])
			if err != nil {
				return err
			}
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			buyer, _ := a.session.Account()
			receipt, err := a.orchestrator.Purchase(cmd.Context(), id, buyer)
			if err != nil {
				return err
			}
			return printReceipt(cmd.OutOrStdout(), receipt)
		},
	}
}

func newApproveBuyCmd(opts *rootOptions) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "approve-buy <sale-id>",
		Short: "Aprova o gasto do token de pagamento pelo crowdsale e então compra",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSaleID(args[0])
			if err != nil {
				return err
			}
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			meta, err := a.reader.TokenMetadata(cmd.Context(), a.cfg.PaymentToken)
			if err != nil {
				return err
			}
			raw, err := handlers.ParseUnits(amount, meta.Decimals)
			if err != nil {
				return err
			}

			buyer, _ := a.session.Account()
			receipt, err := a.orchestrator.ApproveAndPurchase(cmd.Context(), id, raw, buyer)
			if err != nil {
				return err
			}
			return printReceipt(cmd.OutOrStdout(), receipt)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "permissão em unidades do token de pagamento")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseSaleID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("sale id must be a positive integer, got %q", s)
	}
	return id, nil
}

func printReceipt(out io.Writer, r models.Receipt) error {
	_, err := fmt.Fprintf(out, "%s confirmada: tx %s no bloco %d (gas %d)\n", r.Kind, r.TxHash.Hex(), r.BlockNumber, r.GasUsed)
	return err
}
