package storage

import (
	"testing"
	"time"

	"github.com/proofofsteak/steakboard/internal/models"
)

func TestSetAndGetAreCaseInsensitive(t *testing.T) {
	s := New()
	s.Set(&models.PendingSubmission{Handle: "0xABC", Identity: "0x1"})

	p, ok := s.Get("0xabc")
	if !ok {
		t.Fatal("Expected submission to be found")
	}
	p.Status = "mutated"
	if again, _ := s.Get("0xABC"); again.Status == "mutated" {
		t.Error("Expected Get to return a copy")
	}

	s.Delete("0XABC")
	if _, ok := s.Get("0xabc"); ok {
		t.Error("Expected submission to be deleted")
	}
}

func TestGetAllFiltersByIdentityNewestFirst(t *testing.T) {
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Set(&models.PendingSubmission{Handle: "0x1", Identity: "0xAA", SubmittedAt: base})
	s.Set(&models.PendingSubmission{Handle: "0x2", Identity: "0xaa", SubmittedAt: base.Add(time.Minute)})
	s.Set(&models.PendingSubmission{Handle: "0x3", Identity: "0xbb", SubmittedAt: base.Add(2 * time.Minute)})

	tests := []struct {
		identity string
		expected []string
	}{
		{identity: "", expected: []string{"0x3", "0x2", "0x1"}},
		{identity: "0xaa", expected: []string{"0x2", "0x1"}},
		{identity: "0xcc", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			got := s.GetAll(tt.identity)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d submissions, got %d", len(tt.expected), len(got))
			}
			for i, handle := range tt.expected {
				if got[i].Handle != handle {
					t.Errorf("Expected %s at %d, got %s", handle, i, got[i].Handle)
				}
			}
		})
	}
}

func TestResolve(t *testing.T) {
	s := New()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.Set(&models.PendingSubmission{Handle: "0x1", Status: "PENDING"})

	if s.Resolve("0x2", "ACCEPTED", true, "") {
		t.Error("Expected unknown handle to report false")
	}

	s.Resolve("0x1", "", false, "node unreachable")
	p, _ := s.Get("0x1")
	if p.Resolved() || p.Error != "node unreachable" {
		t.Errorf("Expected error without resolution, got %+v", p)
	}

	s.UpdateStatus("0x1", "COMMITTING")
	s.Resolve("0x1", "ACCEPTED", true, "")
	p, _ = s.Get("0x1")
	if !p.Resolved() || !*p.Accepted || p.Status != "ACCEPTED" || p.Error != "" {
		t.Errorf("Expected accepted resolution, got %+v", p)
	}
	if p.ResolvedAt == nil || !p.ResolvedAt.Equal(fixed) {
		t.Errorf("Expected resolution time, got %v", p.ResolvedAt)
	}
}
