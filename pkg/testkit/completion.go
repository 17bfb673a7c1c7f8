// Package testkit provides test doubles shared across package tests.
package testkit

import (
	"context"
	"sync"

	"seatdesk/pkg/completion"
)

// step is one scripted completion outcome.
type step struct {
	err      error
	response completion.Response
}

// ScriptedClient is a completion.Client that replays queued outcomes in
// order. Tests queue responses and errors up front, then assert on the
// requests the code under test actually issued.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []step
	requests []completion.Request
	model    string
}

// NewScriptedClient creates an empty scripted client.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{model: "scripted-model"}
}

// QueueResponse appends a successful response to the script.
func (s *ScriptedClient) QueueResponse(content string) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{response: completion.Response{Content: content, StopReason: "end_turn"}})
	return s
}

// QueueError appends an error to the script.
func (s *ScriptedClient) QueueError(err error) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{err: err})
	return s
}

// Complete implements completion.Client. Once the script runs out, the
// last step repeats; an empty script returns an empty response.
func (s *ScriptedClient) Complete(_ context.Context, in completion.Request) (completion.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, in)

	if len(s.steps) == 0 {
		return completion.Response{}, nil
	}
	next := s.steps[0]
	if len(s.steps) > 1 {
		s.steps = s.steps[1:]
	}
	if next.err != nil {
		return completion.Response{}, next.err
	}
	return next.response, nil
}

// ModelName implements completion.Client.
func (s *ScriptedClient) ModelName() string { return s.model }

// Requests returns a copy of all requests seen so far.
func (s *ScriptedClient) Requests() []completion.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]completion.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CallCount returns how many completions were attempted.
func (s *ScriptedClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
