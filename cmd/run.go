package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full ingestion pass over all configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cacheStore, err := initCache()
		if err != nil {
			return eris.Wrap(err, "open cache")
		}
		defer cacheStore.Close()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		geocoder, err := initGeocoder(cacheStore)
		if err != nil {
			return err
		}

		taxonomy, err := loadTaxonomy()
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, cacheStore, st, geocoder, taxonomy)
		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("ingestion complete",
			zap.Int("jobs_seen", result.Run.JobsSeen),
			zap.Int("jobs_new", result.Run.JobsNew),
			zap.Int("reports", result.Run.Reports),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Snapshot)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
