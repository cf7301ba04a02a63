package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/veilnet-io/veilnet/internal/interfaces/cli/migrate"
	"github.com/veilnet-io/veilnet/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "veilnet",
		Short: "VeilNet - distributed proxy fleet control plane",
		Long:  `VeilNet manages worker proxy nodes, user credentials, usage accounting and subscription delivery from a single panel.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
