// Package submission sends analysis entries to the ledger and tracks them
// until consensus accepts or rejects them.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/metrics"
	"github.com/proofofsteak/steakboard/internal/models"
	"github.com/proofofsteak/steakboard/internal/storage"
)

var (
	ErrMissingIdentity = errors.New("a wallet identity is required to submit; connect a wallet and try again")
	ErrMissingImage    = errors.New("an uploaded image is required to submit")
)

// Payload is the entry passed to the contract's analyze_image method.
type Payload = models.Submission

// Ledger is the write and status side of the ledger.
type Ledger interface {
	StatusSource
	WriteContract(ctx context.Context, identity, method string, args ...any) (string, error)
}

// Options controls a single Submit call.
type Options struct {
	// Wait blocks until the poller resolves the submission.
	Wait bool
}

// Pending describes a write accepted into the ledger's pending pool. Outcome
// is only set when the caller waited for confirmation.
type Pending struct {
	Handle       string    `json:"handle"`
	SubmissionID string    `json:"submission_id"`
	Identity     string    `json:"identity"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Outcome      *Outcome  `json:"outcome,omitempty"`
}

type Client struct {
	ledger Ledger
	poller *Poller
	store  *storage.PendingStore
	now    func() time.Time
}

// NewClient wires a client. store may be nil when submissions need not be
// remembered.
func NewClient(l Ledger, poller *Poller, store *storage.PendingStore) *Client {
	if poller == nil {
		poller = NewPoller(l, DefaultInterval, DefaultAttempts)
	}
	return &Client{ledger: l, poller: poller, store: store, now: time.Now}
}

func (c *Client) Poller() *Poller {
	return c.poller
}

// Submit writes payload on behalf of identity and returns the handle as soon
// as the ledger accepts the write. With opts.Wait it also waits for
// confirmation; a confirmation failure is returned as a *ConfirmationError
// alongside the pending submission, whose handle stays valid.
func (c *Client) Submit(ctx context.Context, payload Payload, identity string, opts Options) (Pending, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Pending{}, ErrMissingIdentity
	}
	if strings.TrimSpace(payload.OriginalURL) == "" {
		return Pending{}, ErrMissingImage
	}

	handle, err := c.ledger.WriteContract(ctx, identity, ledger.MethodAnalyzeImage,
		payload.OriginalURL,
		payload.LeaderboardURL,
		payload.AnalysisURL,
		payload.Defense,
		payload.Name,
		payload.Location,
	)
	metrics.Submission(err)
	if err != nil {
		return Pending{}, fmt.Errorf("failed to submit entry: %w", err)
	}

	pending := Pending{
		Handle:       handle,
		SubmissionID: uuid.NewString(),
		Identity:     identity,
		SubmittedAt:  c.now(),
	}
	slog.Info("Submission accepted into pending pool", "handle", handle, "submission_id", pending.SubmissionID)

	if c.store != nil {
		c.store.Set(&models.PendingSubmission{
			Handle:       handle,
			SubmissionID: pending.SubmissionID,
			Identity:     identity,
			Submission:   payload,
			Status:       ledger.StatusPending,
			SubmittedAt:  pending.SubmittedAt,
		})
	}

	if !opts.Wait {
		return pending, nil
	}

	outcome, err := c.Confirm(ctx, handle)
	if err != nil {
		return pending, err
	}
	pending.Outcome = &outcome
	return pending, nil
}

// Confirm polls handle until it resolves and records the result.
func (c *Client) Confirm(ctx context.Context, handle string) (Outcome, error) {
	outcome, err := c.poller.Poll(ctx, handle)
	c.record(handle, outcome, err)
	return outcome, err
}

// Recheck makes a single status check, for callers that gave up waiting.
func (c *Client) Recheck(ctx context.Context, handle string) (Outcome, error) {
	outcome, err := c.poller.WithAttempts(1).Poll(ctx, handle)
	c.record(handle, outcome, err)
	return outcome, err
}

// Watch confirms handle in the background.
func (c *Client) Watch(ctx context.Context, handle string, onResult func(Outcome, error)) *Task {
	return c.poller.Watch(ctx, handle, func(outcome Outcome, err error) {
		c.record(handle, outcome, err)
		if onResult != nil {
			onResult(outcome, err)
		}
	})
}

func (c *Client) record(handle string, outcome Outcome, err error) {
	if c.store == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		var confErr *ConfirmationError
		if errors.As(err, &confErr) && errors.Is(err, ErrTimeout) {
			c.store.UpdateStatus(handle, confErr.Status)
			return
		}
		c.store.Resolve(handle, "", false, err.Error())
		return
	}
	c.store.Resolve(handle, outcome.Status, outcome.Accepted, "")
}
