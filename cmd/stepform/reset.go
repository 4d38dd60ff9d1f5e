package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbxark/stepform/config"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/gateway/sqlite"
)

func resetCmd(app *config.App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored draft for the configured draft key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(app.Database, uploadBaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := gateway.WithDraftKey(cmd.Context(), app.DraftKey)
			if err := store.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("draft %q cleared", app.DraftKey))
			return nil
		},
	}
}
