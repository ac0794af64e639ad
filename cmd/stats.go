/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/akostadinov/chunchun/config"
	"github.com/akostadinov/chunchun/internal/server"
	"github.com/akostadinov/chunchun/internal/services"
	"github.com/spf13/cobra"
)

var detailedStats bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compares the stored watch graph with its targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		s, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := services.NewStatsService(s, server.GraphConfig(cfg)).Stats(ctx, detailedStats)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&detailedStats, "detailed", false, "print one line per user")
}

func printStats(w io.Writer, s services.StatsResponse) {
	for _, d := range s.Details {
		fmt.Fprintf(w, "%s posts: %d, mutual watched: %d\n", d.Username, d.Posts, d.MutualWatched)
	}
	fmt.Fprintf(w, "Generated at: %s\n", s.GeneratedAt.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(w, "Total users: %d (missing %d)\n", s.Users, s.Missing)
	fmt.Fprintf(w, "Anticipated user watches: %d\n", s.AnticipatedWatches)
	fmt.Fprintf(w, "User target mutual watches percent: %d%%\n", s.TargetMutualPercent)
	fmt.Fprintf(w, "User target mutual watches (x100): %d\n", s.TargetMutualX100)
	fmt.Fprintf(w, "Users with less watched users than anticipated: %d\n", s.LessWatches)
	fmt.Fprintf(w, "Users with more watched users than anticipated: %d\n", s.MoreWatches)
	fmt.Fprintf(w, "Users with less mutual watched than anticipated: %d\n", s.LessMutualWatches)
	fmt.Fprintf(w, "Users with more mutual watched than anticipated: %d\n", s.MoreMutualWatches)
	fmt.Fprintf(w, "Users watching themselves: %d\n", s.WatchingSelf)
	fmt.Fprintf(w, "Mutual ratio: %.3f, average watching: %.2f\n", s.MutualRatio, s.AverageWatching)
}
