package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/submission"
)

func newStatusCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <handle>",
		Short: "Check whether a submission was accepted",
		Long: `Checks the status of a submitted entry by its transaction handle.

With --wait the status is polled until the ledger accepts or rejects the
entry, or the retry budget runs out. Interrupting stops the polling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			handle := args[0]
			out := cmd.OutOrStdout()

			if !wait {
				receipt, err := a.cache.TransactionStatus(cmd.Context(), handle)
				if err != nil {
					return err
				}
				status := receipt.Status
				if status == "" {
					status = "unknown"
				}
				fmt.Fprintf(out, "%s: %s\n", handle, status)
				return nil
			}

			task := a.submissions.Watch(cmd.Context(), handle, nil)
			select {
			case <-task.Done():
			case <-cmd.Context().Done():
				task.Cancel()
				<-task.Done()
				return cmd.Context().Err()
			}

			outcome, err := task.Result()
			if errors.Is(err, submission.ErrTimeout) {
				fmt.Fprintf(out, "%s is still pending; try again later\n", handle)
				return err
			}
			if err != nil {
				return err
			}
			printOutcome(out, outcome)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the entry is accepted or rejected")

	return cmd
}

func printOutcome(w io.Writer, outcome submission.Outcome) {
	verdict := "rejected"
	if outcome.Accepted {
		verdict = "accepted"
	}
	fmt.Fprintf(w, "Entry %s (%s after %d checks)\n", verdict, outcome.Status, outcome.Attempts)
}
