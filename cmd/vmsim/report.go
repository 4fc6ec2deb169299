package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/tracing"
)

var reportColumn string

var reportCmd = &cobra.Command{
	Use:   "report [recording.sqlite3]",
	Short: "Summarize the events of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := datarecording.NewReader(args[0])
		defer reader.Close()

		reader.MapTable(tracing.EventTable, tracing.EventEntry{})

		counts, err := reader.CountBy(context.Background(),
			tracing.EventTable, reportColumn, datarecording.QueryParams{})
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, counts[k])
		}

		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportColumn, "by", "Pos",
		"column of the event table to group by")
	rootCmd.AddCommand(reportCmd)
}
