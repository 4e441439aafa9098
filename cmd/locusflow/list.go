package main

import (
	"github.com/spf13/cobra"

	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/tui"
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "List the configured output streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tui.Section("STREAMS")
		for _, name := range buildRegistry(cfg).Names() {
			tui.Muted(name)
		}
		return nil
	},
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the registered filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		tui.Section("FILTERS")
		for _, name := range filter.Names() {
			tui.Muted(name)
		}
		return nil
	},
}
