package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/metrics"
	"github.com/proofofsteak/steakboard/internal/normalize"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultAttempts = 60
)

// ErrTimeout means the poller ran out of attempts before a terminal status.
var ErrTimeout = errors.New("confirmation timed out")

// StatusSource reports the ledger status of a submitted write.
type StatusSource interface {
	TransactionStatus(ctx context.Context, handle string) (ledger.Receipt, error)
}

// Outcome is a terminal confirmation result.
type Outcome struct {
	Handle   string            `json:"handle"`
	Status   string            `json:"status"`
	Accepted bool              `json:"accepted"`
	Attempts int               `json:"attempts"`
	Details  *normalize.Object `json:"details,omitempty"`
}

// ConfirmationError reports that no terminal status was observed for Handle.
// The write itself may still succeed; the handle can be rechecked later.
type ConfirmationError struct {
	Handle   string
	Attempts int
	// Status is the last status observed, if any.
	Status string
	Err    error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirmation of %s failed after %d attempts: %v", e.Handle, e.Attempts, e.Err)
}

func (e *ConfirmationError) Unwrap() error {
	return e.Err
}

// Poller waits for a write to reach the requested status. ACCEPTED is
// requested by default; FINALIZED comes later and satisfies it too.
type Poller struct {
	Source   StatusSource
	Interval time.Duration
	Attempts int
	Status   string
}

func NewPoller(source StatusSource, interval time.Duration, attempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Poller{
		Source:   source,
		Interval: interval,
		Attempts: attempts,
		Status:   ledger.StatusAccepted,
	}
}

// WithAttempts returns a copy of p limited to n attempts.
func (p *Poller) WithAttempts(n int) *Poller {
	cp := *p
	cp.Attempts = n
	return &cp
}

var terminalFailures = map[string]bool{
	ledger.StatusCanceled:          true,
	ledger.StatusUndetermined:      true,
	ledger.StatusLeaderTimeout:     true,
	ledger.StatusValidatorsTimeout: true,
}

func (p *Poller) satisfied(status string) bool {
	if status == p.Status {
		return true
	}
	return p.Status == ledger.StatusAccepted && status == ledger.StatusFinalized
}

// Poll checks handle every Interval until it is accepted or rejected. It
// never returns a pending outcome: exhaustion, a failed status call and
// cancellation all return a *ConfirmationError naming the handle.
func (p *Poller) Poll(ctx context.Context, handle string) (Outcome, error) {
	outcome, err := p.poll(ctx, handle)
	switch {
	case err != nil && errors.Is(err, ErrTimeout):
		metrics.Confirmation("timeout")
	case err != nil:
		metrics.Confirmation("error")
	case outcome.Accepted:
		metrics.Confirmation("accepted")
	default:
		metrics.Confirmation("rejected")
	}
	return outcome, err
}

func (p *Poller) poll(ctx context.Context, handle string) (Outcome, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var last string
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Interval); err != nil {
				return Outcome{}, &ConfirmationError{Handle: handle, Attempts: attempt - 1, Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, &ConfirmationError{Handle: handle, Attempts: attempt - 1, Err: err}
		}

		receipt, err := p.Source.TransactionStatus(ctx, handle)
		if err != nil {
			slog.Error("Failed to fetch transaction status", "handle", handle, "attempt", attempt, "err", err)
			return Outcome{}, &ConfirmationError{Handle: handle, Attempts: attempt, Err: err}
		}

		if receipt.Status != last {
			slog.Debug("Transaction status changed", "handle", handle, "status", receipt.Status, "attempt", attempt)
			last = receipt.Status
		}

		switch {
		case p.satisfied(receipt.Status):
			return Outcome{Handle: handle, Status: receipt.Status, Accepted: true, Attempts: attempt, Details: receipt.Details}, nil
		case terminalFailures[receipt.Status]:
			return Outcome{Handle: handle, Status: receipt.Status, Accepted: false, Attempts: attempt, Details: receipt.Details}, nil
		}
	}

	return Outcome{}, &ConfirmationError{
		Handle:   handle,
		Attempts: attempts,
		Status:   last,
		Err:      fmt.Errorf("%w: last status %q", ErrTimeout, last),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
