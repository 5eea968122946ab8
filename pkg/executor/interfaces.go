// Package executor defines the narrow boundary between the domain-inference
// engine and the backends that actually run a model.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tensorfuzz/domaininfer/pkg/spec"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

// Model is an opaque handle to a computational graph. The engine never
// mutates a model; ownership stays with the caller. Each backend accepts its
// own concrete model type and rejects others with an ExecutionError.
type Model interface {
	// InputSpec derives the model's declared input tensors.
	InputSpec() (*spec.InputSpec, error)
}

// Executor runs a model on a concrete input mapping and returns its outputs.
// A failure to execute (shape mismatch, unsupported op, backend crash) is a
// structural incompatibility and surfaces as an ExecutionError; it is never
// interpreted as evidence about the numeric domain.
type Executor interface {
	Execute(ctx context.Context, model Model, inputs tensor.Map) (tensor.Map, error)
}

// ExecutionError wraps a backend failure to run a model.
type ExecutionError struct {
	Backend string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing on %s backend: %v", e.Backend, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Backend bundles what a CLI needs to use an execution backend: a way to load
// its model format and a way to construct an executor for it.
type Backend struct {
	// New constructs a fresh executor.
	New func() (Executor, error)
	// LoadModel loads a model file in the backend's format.
	LoadModel func(path string) (Model, error)
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]Backend)
)

// Register makes a backend available under a name. Backends register from
// init so that build tags decide what is compiled in.
func Register(name string, b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("executor: backend %q registered twice", name))
	}
	registry[name] = b
}

// Lookup returns a registered backend.
func Lookup(name string) (Backend, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[name]
	if !ok {
		return Backend{}, fmt.Errorf("unknown backend %q (have %v)", name, backendNamesLocked())
	}
	return b, nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	return backendNamesLocked()
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsExecutionError reports whether err stems from a backend execution
// failure.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
