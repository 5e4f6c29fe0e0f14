package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show result cache contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.Open(cfg.Paths.ResultCache)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Total entries: %d\n", stats.Total)
			keys := make([]string, 0, len(stats.ByKey))
			for k := range stats.ByKey {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", k, stats.ByKey[k])
			}
			return nil
		},
	})

	var flagKey string
	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached results",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.Open(cfg.Paths.ResultCache)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(flagKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
			return nil
		},
	}
	clear.Flags().StringVarP(&flagKey, "key", "k", "", "clear only this cache key (all when empty)")
	cmd.AddCommand(clear)

	return cmd
}
