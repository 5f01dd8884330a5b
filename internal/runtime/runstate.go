package runtime

import (
	"fmt"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// runState is the mutable execution state behind the Snapshot projection.
//
// Every write names the generation it belongs to. A write from a generation
// other than the current one, or to a generation that is being torn down, is
// dropped, so a straggling task from a stopped run can never leak into the
// next one.
type runState struct {
	mu       sync.RWMutex
	gen      uint64
	closing  bool
	running  bool
	statuses map[string]domain.Status
	results  map[string]any
	errors   map[string]string

	changed func()
}

func newRunState(changed func()) *runState {
	s := &runState{changed: changed}
	s.clear()
	return s
}

func (s *runState) clear() {
	s.statuses = make(map[string]domain.Status)
	s.results = make(map[string]any)
	s.errors = make(map[string]string)
}

func (s *runState) notify() {
	if s.changed != nil {
		s.changed()
	}
}

// generation returns the generation new writes should be tagged with.
func (s *runState) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// accepting reports whether writes tagged with gen are still applied.
func (s *runState) accepting(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.gen && !s.closing
}

func (s *runState) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// begin clears all per-node state and raises the running flag in one step.
// Handles armed before the run began are returned so the caller can stop them.
func (s *runState) begin() (uint64, map[string]ports.Handle) {
	s.mu.Lock()
	dropped := handlesOf(s.results)
	s.gen++
	s.closing = false
	s.running = true
	s.clear()
	gen := s.gen
	s.mu.Unlock()
	s.notify()
	return gen, dropped
}

// close stops accepting writes for the current generation and returns the
// handles it holds. The projection stays visible until reset.
func (s *runState) close() map[string]ports.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	return handlesOf(s.results)
}

// reset drops every per-node entry, lowers the running flag and opens a new
// idle generation.
func (s *runState) reset() {
	s.mu.Lock()
	s.gen++
	s.closing = false
	s.running = false
	s.clear()
	s.mu.Unlock()
	s.notify()
}

// setRunning changes the global flag without touching per-node state.
func (s *runState) setRunning(gen uint64, running bool) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.running = running
	s.mu.Unlock()
	s.notify()
	return true
}

// setStatus merges a single status entry. A transition to error records msg,
// any other transition clears the previous message.
func (s *runState) setStatus(gen uint64, nodeID string, st domain.Status, msg string) bool {
	s.mu.Lock()
	if gen != s.gen || s.closing {
		s.mu.Unlock()
		return false
	}
	s.statuses[nodeID] = st
	if st == domain.StatusError {
		s.errors[nodeID] = msg
	} else {
		delete(s.errors, nodeID)
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// setStatusIf merges a status entry only while the node still holds want.
func (s *runState) setStatusIf(gen uint64, nodeID string, want, st domain.Status) bool {
	s.mu.Lock()
	if gen != s.gen || s.closing || !s.running || s.statuses[nodeID] != want {
		s.mu.Unlock()
		return false
	}
	s.statuses[nodeID] = st
	s.mu.Unlock()
	s.notify()
	return true
}

// setResult merges a single result entry.
func (s *runState) setResult(gen uint64, nodeID string, result any) bool {
	_, ok := s.swapResult(gen, nodeID, result)
	return ok
}

// swapResult merges a single result entry and returns the handle it
// replaced, if the previous result was one.
func (s *runState) swapResult(gen uint64, nodeID string, result any) (ports.Handle, bool) {
	s.mu.Lock()
	if gen != s.gen || s.closing {
		s.mu.Unlock()
		return nil, false
	}
	prev, _ := s.results[nodeID].(ports.Handle)
	s.results[nodeID] = result
	s.mu.Unlock()
	s.notify()
	return prev, true
}

func (s *runState) result(nodeID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[nodeID]
	return r, ok
}

// hasHandles reports whether any stored result is a live trigger handle.
func (s *runState) hasHandles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(handlesOf(s.results)) > 0
}

func handlesOf(results map[string]any) map[string]ports.Handle {
	out := make(map[string]ports.Handle)
	for id, r := range results {
		if h, ok := r.(ports.Handle); ok {
			out[id] = h
		}
	}
	return out
}

// snapshot copies the state into the read-only projection.
// Handles are described, never exposed.
func (s *runState) snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.NewSnapshot()
	snap.IsRunning = s.running
	for id, st := range s.statuses {
		snap.NodeExecutionState[id] = st
	}
	for id, r := range s.results {
		snap.NodeResults[id] = project(r)
	}
	for id, msg := range s.errors {
		snap.NodeErrors[id] = msg
	}
	return snap
}

func project(result any) any {
	h, ok := result.(ports.Handle)
	if !ok {
		return result
	}
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", h)
}
