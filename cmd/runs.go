package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("store is disabled; run history requires persistence")
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		fmt.Printf("%-36s  %-8s  %8s  %7s  %5s  %7s  %s\n",
			"ID", "STATUS", "SEEN", "NEW", "DUP", "REPORTS", "STARTED")
		for _, r := range runs {
			fmt.Printf("%-36s  %-8s  %8d  %7d  %5d  %7d  %s\n",
				r.ID, r.Status, r.JobsSeen, r.JobsNew, r.Duplicates, r.Reports,
				r.StartedAt.Local().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
