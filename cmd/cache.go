package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/cache"
)

var cacheNamespaces = []cache.Namespace{
	cache.NamespaceDetailPage,
	cache.NamespaceDocumentText,
	cache.NamespaceGeocode,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the fetch/extract/geocode cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show entry counts per cache namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheStore, err := initCache()
		if err != nil {
			return eris.Wrap(err, "open cache")
		}
		defer cacheStore.Close()

		for _, ns := range cacheNamespaces {
			count, err := cacheStore.Count(cmd.Context(), ns)
			if err != nil {
				return eris.Wrapf(err, "count %s", ns)
			}
			fmt.Printf("%-15s %d\n", ns, count)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace]",
	Short: "Clear one cache namespace, or all when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheStore, err := initCache()
		if err != nil {
			return eris.Wrap(err, "open cache")
		}
		defer cacheStore.Close()

		targets := cacheNamespaces
		if len(args) == 1 {
			ns := cache.Namespace(args[0])
			if !validNamespace(ns) {
				return eris.Errorf("unknown namespace %q", args[0])
			}
			targets = []cache.Namespace{ns}
		}

		for _, ns := range targets {
			removed, err := cacheStore.Clear(cmd.Context(), ns)
			if err != nil {
				return eris.Wrapf(err, "clear %s", ns)
			}
			zap.L().Info("cache cleared", zap.String("namespace", string(ns)), zap.Int64("removed", removed))
		}
		return nil
	},
}

func validNamespace(ns cache.Namespace) bool {
	for _, known := range cacheNamespaces {
		if ns == known {
			return true
		}
	}
	return false
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
