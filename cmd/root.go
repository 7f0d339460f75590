package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/config"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "steakboard",
		Short: "Proof of Steak leaderboard client",
		Long: `Steakboard reads the Proof of Steak leaderboards from a GenLayer ledger
and submits new photos for the AI jury to judge.

It can serve the leaderboard API, print leaderboards and contributions,
and submit entries and follow them until the ledger accepts or rejects them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level, err := config.ParseLevel(config.New().GetString(config.KeyLogLevel))
			if err != nil {
				slog.Warn("Ignoring log level", "err", err)
			}
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetLogLoggerLevel(level)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newLeaderboardCmd())
	cmd.AddCommand(newContributionsCmd())
	cmd.AddCommand(newAnalysisCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
