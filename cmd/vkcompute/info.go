package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celer/vkcompute"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "List compute capable adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := vkcompute.DefaultRuntime()
		if err != nil {
			return err
		}

		for _, a := range rt.Adapters() {
			marker := " "
			if a.Index == rt.DefaultAdapterIndex() {
				marker = "*"
			}
			kind := "integrated"
			if a.IsDiscrete() {
				kind = "discrete"
			}
			fmt.Printf("%s %d: %s (%s, compute queue family %d)\n",
				marker, a.Index, a.DeviceName, kind, a.ComputeQueueFamily)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
