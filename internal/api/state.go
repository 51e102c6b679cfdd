package api

import (
	"sync"

	"github.com/ecodata/plantpulse/internal/pipeline"
)

// State holds the latest pipeline result for the handlers. The server
// is not ready until the first successful run lands.
type State struct {
	mu     sync.RWMutex
	result *pipeline.Result
}

// NewState creates an empty state.
func NewState() *State {
	return &State{}
}

// SetResult publishes a finished run.
func (s *State) SetResult(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}

// Result returns the latest run, or nil before the first one.
func (s *State) Result() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Ready reports whether a run has completed.
func (s *State) Ready() bool {
	return s.Result() != nil
}
