package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbxark/stepform/config"
)

func main() {
	var (
		debug      bool
		configPath string
	)
	app := config.DefaultApp()
	configureLogging(slog.LevelWarn)

	root := &cobra.Command{
		Use:           "stepform",
		Short:         "Fill multi-step forms from the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.NewLoader(slog.Default()).Load(configPath)
			if err != nil {
				return err
			}
			level, err := config.ParseLevel(loaded.LogLevel)
			if err != nil {
				return err
			}
			if debug {
				level = slog.LevelDebug
			}
			configureLogging(level)
			*app = *loaded
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to the stepform config file")

	root.AddCommand(runCmd(app))
	root.AddCommand(serveCmd(app))
	root.AddCommand(resetCmd(app))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(level slog.Level) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}
