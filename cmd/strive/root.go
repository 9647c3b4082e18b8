package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var addrFlag string

	ctx := newCommandContext(&configFlag, &addrFlag)

	rootCmd := &cobra.Command{
		Use:           "strive",
		Short:         "Strive rating service CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Daemon API address (defaults to api.bind)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRatingCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newKeysCommand(ctx))
	rootCmd.AddCommand(newDiagnosticsCommand(ctx))
	rootCmd.AddCommand(newIDMapCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
