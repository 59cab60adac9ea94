package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version é definida no build com -ldflags "-X github.com/ferreirogomes/greenfund/cmd.Version=...".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Mostra a versão",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}
