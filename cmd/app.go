package cmd

import (
	"fmt"
	"log/slog"

	"github.com/proofofsteak/steakboard/internal/config"
	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/records"
	"github.com/proofofsteak/steakboard/internal/storage"
	"github.com/proofofsteak/steakboard/internal/submission"
	"github.com/proofofsteak/steakboard/internal/upload"
)

// app wires the collaborators every command shares.
type app struct {
	cfg         *config.Config
	keyring     *ledger.Keyring
	cache       *ledger.Cache
	transformer *records.Transformer
	store       *storage.PendingStore
	submissions *submission.Client
	// uploads is nil when Cloudinary is not configured
	uploads upload.Storage
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.New())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keyring := ledger.NewKeyring()
	for i, key := range cfg.PrivateKeys {
		signer, err := ledger.NewKeySigner(key)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", config.KeyPrivateKey, i+1, err)
		}
		keyring.Add(signer)
		slog.Debug("Loaded signing key", "address", signer.Address().Hex())
	}

	cache := ledger.NewCache(cfg.Ledger, nil, keyring)
	store := storage.New()
	poller := submission.NewPoller(cache, cfg.PollInterval, cfg.PollRetries)

	a := &app{
		cfg:         cfg,
		keyring:     keyring,
		cache:       cache,
		transformer: records.NewTransformer(),
		store:       store,
		submissions: submission.NewClient(cache, poller, store),
	}

	if cfg.Upload.Configured() {
		cld, err := upload.NewCloudinary(cfg.Upload)
		if err != nil {
			return nil, err
		}
		a.uploads = cld
	} else {
		slog.Info("Cloudinary not configured, image uploads disabled")
	}
	return a, nil
}

func (a *app) Close() {
	a.cache.Close()
}

// defaultIdentity is the only configured signer, if there is exactly one.
func (a *app) defaultIdentity() string {
	addrs := a.keyring.Addresses()
	if len(addrs) != 1 {
		return ""
	}
	return addrs[0].Hex()
}
