package ledger

import (
	"strconv"
	"strings"

	"github.com/proofofsteak/steakboard/internal/normalize"
)

// Transaction statuses reported by the ledger.
const (
	StatusUninitialized     = "UNINITIALIZED"
	StatusPending           = "PENDING"
	StatusProposing         = "PROPOSING"
	StatusCommitting        = "COMMITTING"
	StatusRevealing         = "REVEALING"
	StatusAccepted          = "ACCEPTED"
	StatusUndetermined      = "UNDETERMINED"
	StatusFinalized         = "FINALIZED"
	StatusCanceled          = "CANCELED"
	StatusAppealRevealing   = "APPEAL_REVEALING"
	StatusAppealCommitting  = "APPEAL_COMMITTING"
	StatusReadyToFinalize   = "READY_TO_FINALIZE"
	StatusValidatorsTimeout = "VALIDATORS_TIMEOUT"
	StatusLeaderTimeout     = "LEADER_TIMEOUT"
)

// statusNumbers follows the consensus contract's enum order.
var statusNumbers = []string{
	StatusUninitialized,
	StatusPending,
	StatusProposing,
	StatusCommitting,
	StatusRevealing,
	StatusAccepted,
	StatusUndetermined,
	StatusFinalized,
	StatusCanceled,
	StatusAppealRevealing,
	StatusAppealCommitting,
	StatusReadyToFinalize,
	StatusValidatorsTimeout,
	StatusLeaderTimeout,
}

// Receipt is the ledger's view of a submitted transaction. Status is empty
// while the node does not know the transaction.
type Receipt struct {
	Handle  string            `json:"handle"`
	Status  string            `json:"status"`
	Details *normalize.Object `json:"details,omitempty"`
}

// StatusName maps a numeric or textual status to its canonical name.
func StatusName(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			return numberedStatus(n)
		}
		return strings.ToUpper(s)
	}
	if f, ok := normalize.Float(v); ok {
		return numberedStatus(int(f))
	}
	return ""
}

func numberedStatus(n int) string {
	if n < 0 || n >= len(statusNumbers) {
		return ""
	}
	return statusNumbers[n]
}

func statusName(details *normalize.Object) string {
	if details == nil {
		return ""
	}
	v, _ := details.Get("status")
	if name := StatusName(v); name != "" {
		return name
	}
	v, _ = details.Get("status_name")
	return StatusName(v)
}
