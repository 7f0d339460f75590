package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersByOutcome(t *testing.T) {
	PageFetch("wallet", nil)
	PageFetch("wallet", errors.New("boom"))
	PageFetch("wallet", errors.New("boom"))

	if got := testutil.ToFloat64(pageFetches.WithLabelValues("wallet", "error")); got != 2 {
		t.Errorf("Expected 2 wallet errors, got %v", got)
	}
	if got := testutil.ToFloat64(pageFetches.WithLabelValues("wallet", "ok")); got != 1 {
		t.Errorf("Expected 1 wallet success, got %v", got)
	}
}

func TestLedgerTimer(t *testing.T) {
	done := LedgerTimer("get_analysis_by_id")
	done(nil)

	if got := testutil.ToFloat64(ledgerCalls.WithLabelValues("get_analysis_by_id", "ok")); got != 1 {
		t.Errorf("Expected 1 call, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	Confirmation("accepted")
	UploadBytes(512)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"steakboard_confirmations_total", "steakboard_upload_bytes_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %s in metrics output", want)
		}
	}
}
