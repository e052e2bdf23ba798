// Package provider defines the strategy boundary between the orchestration
// core and the interchangeable artifact producers (remote generation API,
// local synthesis, third-party search retrieval).
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// Common provider errors
var (
	// ErrUnknownProvider is returned when a provider identifier does not
	// match any registered implementation. It is a configuration error,
	// surfaced before any task is created.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrTaskCancelled is returned when a provider abandons work after
	// observing that its task is no longer active. It marks cooperative
	// cancellation, not a failure.
	ErrTaskCancelled = errors.New("task cancelled")
)

// Tracker is the narrow view of the task registry a provider gets: enough
// to record progress milestones and observe cancellation at checkpoints,
// no ability to finalize tasks.
type Tracker interface {
	// MarkProcessing transitions the task out of pending with an initial
	// progress hint.
	MarkProcessing(taskID uuid.UUID, progress int)

	// UpdateProgress raises the task's progress.
	UpdateProgress(taskID uuid.UUID, progress int)

	// SetProviderJobID records the upstream correlation id.
	SetProviderJobID(taskID uuid.UUID, jobID string)

	// IsActive reports whether the task is still worth working on.
	// Providers check it between suspension points and abandon work once
	// it turns false.
	IsActive(taskID uuid.UUID) bool
}

// Provider turns a generation request into a produced artifact. Produce is
// expected to persist the artifact itself and return the result reference;
// finalizing the task (complete/fail) stays with the caller.
type Provider interface {
	// Name returns the identifier the provider registers under.
	Name() string

	// Produce generates (or retrieves) an artifact for the request.
	Produce(ctx context.Context, taskID uuid.UUID, req domain.GenerateRequest) (*domain.GenerationResult, error)
}

// Selector resolves provider identifiers to implementations. An explicit
// per-request override wins over the configured default; an unrecognized
// identifier is rejected up front.
type Selector struct {
	providers   map[string]Provider
	defaultName string
}

// NewSelector creates a Selector with the given default provider name.
func NewSelector(defaultName string) *Selector {
	return &Selector{
		providers:   make(map[string]Provider),
		defaultName: defaultName,
	}
}

// Register adds a provider under its own name.
func (s *Selector) Register(p Provider) {
	s.providers[p.Name()] = p
}

// Resolve returns the provider for the given override, or the default when
// the override is empty. Unknown identifiers (including an unregistered
// default) return ErrUnknownProvider.
func (s *Selector) Resolve(override string) (Provider, error) {
	name := override
	if name == "" {
		name = s.defaultName
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, name, s.names())
	}
	return p, nil
}

func (s *Selector) names() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
