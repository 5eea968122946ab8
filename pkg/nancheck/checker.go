// Package nancheck decides whether an input range is statistically NaN-safe
// for a model: it repeatedly samples inputs from the range, runs the model on
// an injected executor and checks the outputs for non-finite values.
package nancheck

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"k8s.io/klog/v2"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/sampler"
	"github.com/tensorfuzz/domaininfer/pkg/spec"
)

const (
	// DefaultMaxTrials is the number of stochastic executions per decision.
	DefaultMaxTrials = 3
	// DefaultThres accepts a range only if every trial is NaN-free.
	DefaultThres = 1.0
)

// ErrModelNotLoaded is returned when Decide is called before LoadModel.
var ErrModelNotLoaded = errors.New("nancheck: no model loaded")

// Checker is the NaN-checking capability. LoadModel must be called before any
// Decide query. Backend variants differ only in the executor injected into
// the implementation; the decision algorithm is shared.
type Checker interface {
	LoadModel(ctx context.Context, model executor.Model) error
	// Decide reports whether [low, high] is judged NaN-free under the
	// bounded-trial statistical test.
	Decide(ctx context.Context, low, high float64) (bool, error)
}

// Options tune the statistical test. Zero values take defaults.
type Options struct {
	// MaxTrials bounds the executions per decision.
	MaxTrials int
	// Thres is the minimum pass fraction to accept a range. Zero takes
	// DefaultThres; an accept-everything threshold of literal zero is not
	// expressible.
	Thres float64
	// Rand is the sampling source; nil means time-seeded.
	Rand *rand.Rand
}

// ExecChecker decides NaN-safety by running a model on an injected executor.
type ExecChecker struct {
	exec      executor.Executor
	maxTrials int
	thres     float64
	rng       *rand.Rand

	model     executor.Model
	inputSpec *spec.InputSpec
}

var _ Checker = (*ExecChecker)(nil)

// NewExecChecker builds a checker over the given executor. The executor is
// required; there is no implicit default backend.
func NewExecChecker(exec executor.Executor, opts Options) *ExecChecker {
	if exec == nil {
		panic("nancheck: nil executor")
	}
	c := &ExecChecker{
		exec:      exec,
		maxTrials: opts.MaxTrials,
		thres:     opts.Thres,
		rng:       opts.Rand,
	}
	if c.maxTrials <= 0 {
		c.maxTrials = DefaultMaxTrials
	}
	if c.thres == 0 {
		c.thres = DefaultThres
	}
	return c
}

// LoadModel binds the checker to a model and derives its input spec.
func (c *ExecChecker) LoadModel(ctx context.Context, model executor.Model) error {
	ispec, err := model.InputSpec()
	if err != nil {
		return fmt.Errorf("deriving input spec: %w", err)
	}
	c.model = model
	c.inputSpec = ispec
	return nil
}

// Decide runs up to MaxTrials executions on fresh samples from [low, high].
// It fails fast as soon as the best achievable pass fraction drops below
// Thres; with the default Thres of 1 that means the first NaN-producing trial
// ends the test. Executor failures propagate as errors, never as decisions.
func (c *ExecChecker) Decide(ctx context.Context, low, high float64) (bool, error) {
	if c.model == nil {
		return false, ErrModelNotLoaded
	}
	r := domain.Range{Low: low, High: high}
	if err := r.Validate(); err != nil {
		return false, err
	}
	log := klog.FromContext(ctx)

	succ := 0
	for trial := 0; trial < c.maxTrials; trial++ {
		inputs, err := sampler.Sample(c.inputSpec, r, c.rng)
		if err != nil {
			return false, fmt.Errorf("sampling trial input: %w", err)
		}
		outputs, err := c.exec.Execute(ctx, c.model, inputs)
		if err != nil {
			return false, err
		}
		if !outputs.HasNaN() {
			succ++
		}
		remain := c.maxTrials - trial - 1
		if float64(succ+remain)/float64(c.maxTrials) < c.thres {
			log.V(2).Info("range rejected", "range", r, "trials", trial+1, "passed", succ)
			return false, nil
		}
	}
	// The fail-fast bound never tripped, so succ/maxTrials >= thres.
	log.V(2).Info("range accepted", "range", r, "trials", c.maxTrials, "passed", succ)
	return true, nil
}
