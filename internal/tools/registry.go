// Package tools provides the transport-agnostic tool registry: a name-keyed
// table of monitoring operations built once at startup, each validating its
// arguments, orchestrating one or more backend clients, and returning
// structured data alongside a natural-language summary. Every transport
// adapter routes through Invoke; no handler knows which transport called it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Caller errors. They are surfaced verbatim to the invoking front-end and
// never retried.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Result is the outcome of one tool invocation. Data holds deterministic
// values (numbers, not formatted strings) so callers who only need the
// figures never parse prose; Summary is the human-readable account;
// Unavailable names the data sources that failed for a partial result.
type Result struct {
	Data        map[string]any `json:"data"`
	Summary     string         `json:"summary"`
	Unavailable []string       `json:"unavailable,omitempty"`
}

// Handler executes one tool against an already validated argument bag.
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Descriptor describes one registered tool. Registered once at startup and
// read-only afterwards, so it may be shared across concurrent sessions.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     Handler
}

// Registry maps tool names to handlers. It is populated during startup and
// read-only afterwards; no locking is needed on the lookup path.
type Registry struct {
	order  []string
	byName map[string]Descriptor
	log    *logrus.Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Descriptor),
		log:    logrus.WithField("component", "tools"),
	}
}

// Register adds a tool. Registering a duplicate name or a nil handler is a
// programming error and fails.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("registering tool with empty name")
	}
	if d.Handler == nil {
		return fmt.Errorf("registering tool %s with nil handler", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("tool %s already registered", d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// List returns the descriptors in registration order. The slice is a copy;
// two calls with no registration in between yield identical sets.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Invoke looks up and runs one tool. Exactly one Result or one error is
// produced per call, regardless of transport.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	log := r.log.WithFields(logrus.Fields{"tool": name, "invocation": uuid.NewString()})
	log.Debug("invoking")

	started := time.Now()
	result, err := d.Handler(ctx, args)
	if err != nil {
		log.Warnf("failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return nil, err
	}

	log.Infof("completed in %s", time.Since(started).Round(time.Millisecond))
	return result, nil
}
