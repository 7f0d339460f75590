package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/proofofsteak/steakboard/internal/models"
)

// PendingStore keeps submissions awaiting confirmation in memory. Nothing is
// persisted; a restart forgets every pending handle.
type PendingStore struct {
	pending map[string]*models.PendingSubmission
	mu      sync.RWMutex
	now     func() time.Time
}

func New() *PendingStore {
	return &PendingStore{
		pending: make(map[string]*models.PendingSubmission),
		now:     time.Now,
	}
}

func key(handle string) string {
	return strings.ToLower(handle)
}

func (s *PendingStore) Get(handle string) (*models.PendingSubmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.pending[key(handle)]
	if !exists {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *PendingStore) Set(p *models.PendingSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pending[key(p.Handle)] = &cp
}

// GetAll returns every submission, newest first. An empty identity matches
// all submitters.
func (s *PendingStore) GetAll(identity string) []*models.PendingSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.PendingSubmission, 0, len(s.pending))
	for _, p := range s.pending {
		if identity != "" && !strings.EqualFold(p.Identity, identity) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result
}

func (s *PendingStore) Delete(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key(handle))
}

// UpdateStatus records the latest observed ledger status.
func (s *PendingStore) UpdateStatus(handle, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key(handle)]
	if ok && status != "" {
		p.Status = status
	}
	return ok
}

// Resolve stores the poller's final answer for handle. Failures keep the
// submission so it can be rechecked later.
func (s *PendingStore) Resolve(handle, status string, accepted bool, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key(handle)]
	if !ok {
		return false
	}
	if errMsg != "" {
		p.Error = errMsg
		return true
	}
	now := s.now()
	if status != "" {
		p.Status = status
	}
	p.Accepted = &accepted
	p.Error = ""
	p.ResolvedAt = &now
	return true
}
