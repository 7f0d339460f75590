package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/proofofsteak/steakboard/internal/handlers"
	"github.com/proofofsteak/steakboard/internal/images"
	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/network"
	"github.com/proofofsteak/steakboard/internal/upload"
)

func newServeCmd() *cobra.Command {
	var (
		port        string
		skipNetwork bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the leaderboard API server",
		Long: `Starts the leaderboard API on the specified port.

The API serves category leaderboards, wallet contributions and analysis
details from the ledger, accepts photo uploads, and submits entries on
behalf of the wallets configured in STEAKBOARD_PRIVATE_KEY.`,
		Example: `  # Start server on default port 8888
  steakboard serve

  # Start server on custom port
  steakboard serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Port
			}

			deps := handlers.Deps{
				Cache:       a.cache,
				Transformer: a.transformer,
				Submissions: a.submissions,
				Store:       a.store,
				Uploads:     a.uploads,
				Fetcher:     images.NewFetcher(upload.MaxSize),
				PageSize:    a.cfg.PageSize,
			}
			if !skipNetwork {
				caller, err := ledger.Dial(cmd.Context(), a.cfg.Ledger)
				if err != nil {
					return err
				}
				defer caller.Close()
				deps.Guard = network.NewGuard(network.ChainFromConfig(a.cfg.Ledger), a.cache)
				deps.Wallet = network.NewRPCWallet(caller)
			}
			handler := handlers.New(deps)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(a.cfg.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Leaderboard API available", "addr", addr, "url", "http://localhost"+addr, "contract", a.cfg.Ledger.ContractAddress.Hex())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (defaults to $PORT)")
	cmd.Flags().BoolVar(&skipNetwork, "skip-network-check", false, "Do not check the RPC endpoint's chain id before signing")

	return cmd
}
