package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAnalysisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analysis <id>",
		Short: "Show the jury's verdict for one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("analysis id must be a non-negative integer, got %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			reader, err := a.cache.Reader(cmd.Context())
			if err != nil {
				return err
			}
			raw, found, err := reader.AnalysisByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no analysis with id %d", id)
			}

			renderRecord(cmd.OutOrStdout(), a.transformer.Transform(raw))
			return nil
		},
	}
}
