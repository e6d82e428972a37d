package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/celer/vkcompute"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vkcompute",
	Short: "Inspect and exercise the Vulkan compute context",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			return nil
		}
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		vkcompute.SetLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log context activity")
}
