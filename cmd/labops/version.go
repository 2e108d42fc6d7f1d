package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/internal/config"
	"github.com/labsuite/labops/internal/db"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the binary and schema versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "labops %s (schema %d)\n", config.Version, db.SchemaVersion())
		},
	}
}
