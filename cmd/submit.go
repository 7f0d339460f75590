package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/network"
	"github.com/proofofsteak/steakboard/internal/submission"
	"github.com/proofofsteak/steakboard/internal/upload"
)

func newSubmitCmd() *cobra.Command {
	var (
		payload     submission.Payload
		identity    string
		imagePath   string
		wait        bool
		skipNetwork bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a photo for the AI jury",
		Long: `Submits an entry to the analyzer contract and prints its transaction handle.

The photo is either a local file, uploaded to Cloudinary first, or URLs of an
image that is already hosted. The entry is signed with the key in
STEAKBOARD_PRIVATE_KEY whose address matches --from.`,
		Example: `  # Upload and submit, then wait for the verdict
  steakboard submit --image ribeye.jpg --name "Ojo de bife" --location "Palermo" --wait

  # Submit an image that is already hosted
  steakboard submit --original-url https://example.com/steak.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if identity == "" {
				identity = a.defaultIdentity()
			}
			if identity == "" {
				return fmt.Errorf("%w: pass --from with one of the configured wallet addresses", submission.ErrMissingIdentity)
			}

			if imagePath != "" {
				uploaded, err := uploadFile(cmd, a.uploads, imagePath, payload)
				if err != nil {
					return err
				}
				payload.OriginalURL = uploaded.OriginalURL
				payload.LeaderboardURL = uploaded.LeaderboardURL
				payload.AnalysisURL = uploaded.PreviewURL
			}
			if payload.LeaderboardURL == "" {
				payload.LeaderboardURL = payload.OriginalURL
			}
			if payload.AnalysisURL == "" {
				payload.AnalysisURL = payload.OriginalURL
			}

			if !skipNetwork {
				caller, err := ledger.Dial(ctx, a.cfg.Ledger)
				if err != nil {
					return err
				}
				guard := network.NewGuard(network.ChainFromConfig(a.cfg.Ledger), a.cache)
				err = guard.Ensure(ctx, network.NewRPCWallet(caller))
				caller.Close()
				if err != nil {
					return err
				}
			}

			pending, err := a.submissions.Submit(ctx, payload, identity, submission.Options{Wait: wait})
			out := cmd.OutOrStdout()
			var confErr *submission.ConfirmationError
			switch {
			case errors.As(err, &confErr):
				fmt.Fprintf(out, "Submitted %s\n", pending.Handle)
				fmt.Fprintf(out, "Still waiting for the jury. Check again with: steakboard status %s --wait\n", pending.Handle)
				return err
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "Submitted %s\n", pending.Handle)
			if pending.Outcome != nil {
				printOutcome(out, *pending.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "from", "", "Wallet address to submit as (defaults to the only configured key)")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Local photo to upload before submitting")
	cmd.Flags().StringVar(&payload.OriginalURL, "original-url", "", "URL of the full-size photo")
	cmd.Flags().StringVar(&payload.LeaderboardURL, "leaderboard-url", "", "URL of the 800x600 leaderboard crop")
	cmd.Flags().StringVar(&payload.AnalysisURL, "analysis-url", "", "URL of the 400x300 crop the jury looks at")
	cmd.Flags().StringVar(&payload.Name, "name", "", "Name of the dish")
	cmd.Flags().StringVar(&payload.Location, "location", "", "Where the photo was taken")
	cmd.Flags().StringVar(&payload.Defense, "defense", "", "A short case for why this entry deserves to rank")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the jury's verdict")
	cmd.Flags().BoolVar(&skipNetwork, "skip-network-check", false, "Do not check the RPC endpoint's chain id before signing")
	cmd.MarkFlagsMutuallyExclusive("image", "original-url")

	return cmd
}

func uploadFile(cmd *cobra.Command, storage upload.Storage, path string, payload submission.Payload) (*upload.Result, error) {
	if storage == nil {
		return nil, upload.ErrNotConfigured
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, upload.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := upload.Validate(http.DetectContentType(data), int64(len(data))); err != nil {
		return nil, err
	}

	slog.Info("Uploading image", "path", path, "bytes", len(data))
	return storage.Upload(cmd.Context(), bytes.NewReader(data), upload.Metadata{
		Filename: filepath.Base(path),
		Name:     payload.Name,
		Location: payload.Location,
	})
}
