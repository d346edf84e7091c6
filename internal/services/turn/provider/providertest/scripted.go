// Package providertest provides deterministic content providers for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
)

// Response configures one completion in a scripted sequence.
type Response struct {
	Text string
	Err  error
}

// Text returns a successful scripted response.
func Text(text string) Response {
	return Response{Text: text}
}

// Scripted replays responses in order and records every request.
type Scripted struct {
	mu        sync.Mutex
	index     int
	responses []Response
	requests  []content.Request
}

// NewScripted returns a provider replaying responses.
func NewScripted(responses ...Response) *Scripted {
	cloned := make([]Response, len(responses))
	copy(cloned, responses)
	return &Scripted{responses: cloned}
}

var _ content.Provider = (*Scripted)(nil)

// Complete returns the next scripted response.
func (s *Scripted) Complete(_ context.Context, req content.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.index >= len(s.responses) {
		return "", fmt.Errorf("script exhausted at step %d", s.index+1)
	}
	current := s.responses[s.index]
	s.index++
	if current.Err != nil {
		return "", current.Err
	}
	return current.Text, nil
}

// Push appends responses to the script.
func (s *Scripted) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []content.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of requests received so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Remaining returns the number of unconsumed responses.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses) - s.index
}
