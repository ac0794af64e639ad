/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/akostadinov/chunchun/config"
	"github.com/akostadinov/chunchun/internal/server"
	"github.com/spf13/cobra"
)

// populateCmd represents the populate command
var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Generates demo users, posts and the watch graph",
	Long: `Generates CHUNCHUN_INIT_USERS users with CHUNCHUN_INIT_POSTS posts each
and links them so that every user watches CHUNCHUN_INIT_WATCHES others,
CHUNCHUN_INIT_MUTUAL_WATCHES_PERCENT percent of them mutually. A store
that already holds user1 is left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		s, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		avatars, err := server.OpenStorage(ctx, cfg, s)
		if err != nil {
			return err
		}

		summary, err := server.Populate(ctx, s, avatars, server.GraphConfig(cfg))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "users: %d, posts: %d, relationships: %d, took %s\n",
			summary.Users, summary.Posts, summary.Relationships, summary.Elapsed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(populateCmd)
}
