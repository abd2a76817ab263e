package poller

import "sync"

// Sequence orders responses to one cache slot. Take a number before issuing
// a request and Apply the response with it; responses older than the last
// applied one are dropped.
type Sequence struct {
	mu      sync.Mutex
	next    uint64
	applied uint64
}

// Next returns a number greater than every number handed out before.
func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Apply runs fn if seq is newer than the last applied number and reports
// whether it did. fn runs under the sequence lock.
func (s *Sequence) Apply(seq uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	fn()
	return true
}
