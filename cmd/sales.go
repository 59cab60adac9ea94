package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferreirogomes/greenfund/handlers"
	"github.com/ferreirogomes/greenfund/models"
)

func newSalesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sales",
		Short: "Lista as vendas abertas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.session.Snapshot()
			if snap == nil {
				return fmt.Errorf("nenhum snapshot publicado")
			}
			return a.printCatalog(cmd, snap.Catalog)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Mostra o histórico de compras da conta conectada",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			account, _ := a.session.Account()
			history, err := a.reader.GetPurchaseHistory(cmd.Context(), account)
			if err != nil {
				return err
			}
			meta, err := a.reader.TokenMetadata(cmd.Context(), a.cfg.SaleToken)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(history) == 0 {
				_, err := fmt.Fprintf(out, "nenhuma compra para %s\n", account.Hex())
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tAMOUNT")
			for _, h := range history {
				fmt.Fprintf(tw, "%s\t%s %s\n", h.Time().Local().Format(time.DateTime), handlers.FormatUnits(h.Amount, meta.Decimals), meta.Symbol)
			}
			return tw.Flush()
		},
	}
}

func (a *app) printCatalog(cmd *cobra.Command, c models.Catalog) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	pay, err := a.reader.TokenMetadata(ctx, a.cfg.PaymentToken)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSELLER\tAMOUNT\tPRICE\tTOTAL")
	for _, l := range c.Listings {
		amount := l.AmountRemaining.String()
		if meta, err := a.reader.TokenMetadata(ctx, l.TokenAddress); err == nil {
			amount = handlers.FormatUnits(l.AmountRemaining, meta.Decimals) + " " + meta.Symbol
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s %s\t%s %s\n",
			l.ID,
			l.Seller.Hex(),
			amount,
			handlers.FormatUnits(l.PricePerToken, pay.Decimals), pay.Symbol,
			handlers.FormatUnits(l.TotalCost, pay.Decimals), pay.Symbol)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printFailures(out, c.Failures)
	return nil
}

func printFailures(out io.Writer, failures []models.ListingFailure) {
	for _, f := range failures {
		fmt.Fprintf(out, "venda %d não pôde ser lida: %s\n", f.ID, f.Err)
	}
}
