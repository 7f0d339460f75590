package cmd

import (
	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/categories"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the leaderboard categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderCategories(cmd.OutOrStdout(), categories.All())
			return nil
		},
	}
}
