// internal/suspension/state.go
//
// Package suspension is the process-wide kill switch. Armed, it rejects
// all functional traffic while liveness stays green.
package suspension

import (
	"sync"
	"time"
)

// Info is a consistent snapshot of the suspension record.
type Info struct {
	Suspended   bool       `json:"suspended"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty"`
	SuspendedBy string     `json:"suspended_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// State is the singleton. All reads go through Snapshot so no request can
// observe a torn record.
type State struct {
	mu          sync.RWMutex
	suspended   bool
	suspendedAt time.Time
	suspendedBy string
	reason      string
}

func NewState() *State { return &State{} }

// Suspend arms the gate. Returns false when already armed.
func (s *State) Suspend(by, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return false
	}
	s.suspended = true
	s.suspendedAt = time.Now().UTC()
	s.suspendedBy = by
	s.reason = reason
	return true
}

// Resume disarms the gate. Returns false when not armed.
func (s *State) Resume(by string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.suspended {
		return false
	}
	s.suspended = false
	s.suspendedAt = time.Time{}
	s.suspendedBy = ""
	s.reason = ""
	return true
}

func (s *State) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

func (s *State) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{Suspended: s.suspended, SuspendedBy: s.suspendedBy, Reason: s.reason}
	if s.suspended {
		at := s.suspendedAt
		info.SuspendedAt = &at
	}
	return info
}
