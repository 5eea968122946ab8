// Package infer discovers the NaN-safe input domain of a model: the maximal
// set of disjoint sub-ranges of the search interval on which a NaN checker
// accepts randomly sampled inputs.
//
// The search assumes that NaN-safety is monotone when moving outward from a
// known-safe seed point: safe up to some boundary, unsafe beyond it, with no
// further alternation. This precondition is not verified; for models whose
// safety is non-monotone in input magnitude the discovered boundaries may
// exclude safe sub-regions or admit unsafe points within Eps of a boundary.
package infer

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/nancheck"
)

const (
	// DefaultLo and DefaultHi bound the search.
	DefaultLo = -10.0
	DefaultHi = 10.0
	// DefaultEps is the bisection precision.
	DefaultEps = 1e-3
	// DefaultSeedPoints is the number of seed points spread over [-1, 1].
	DefaultSeedPoints = 10
)

// DomainInferrer produces a range set for a model. A nil set with a nil
// error is the degraded "no safe range found" outcome; callers substitute
// domain.DefaultRange.
type DomainInferrer interface {
	InferDomain(ctx context.Context, model executor.Model) (domain.RangeSet, error)
}

// Static skips the search and always reports the default range. Useful when
// query cost is not worth paying for well-behaved model populations.
type Static struct{}

var _ DomainInferrer = Static{}

func (Static) InferDomain(ctx context.Context, model executor.Model) (domain.RangeSet, error) {
	return domain.RangeSet{domain.DefaultRange}, nil
}

// Options tune the search. Zero values take defaults. Lo and Hi fall back
// together only when both are zero, so bounds straddling zero work as given;
// a literal {0, 0} search window is not expressible.
type Options struct {
	Lo, Hi     float64
	Eps        float64
	SeedPoints int
}

func (o Options) withDefaults() Options {
	if o.Lo == 0 && o.Hi == 0 {
		o.Lo, o.Hi = DefaultLo, DefaultHi
	}
	if o.Eps == 0 {
		o.Eps = DefaultEps
	}
	if o.SeedPoints == 0 {
		o.SeedPoints = DefaultSeedPoints
	}
	return o
}

// Inferrer drives a NaN checker over seed points to build a range set.
// Checker queries dominate runtime, so the search spends extra logic (skip
// covered points, extend the previous range, bisect boundaries) to keep the
// query count down.
type Inferrer struct {
	checker nancheck.Checker
	opts    Options
}

var _ DomainInferrer = (*Inferrer)(nil)

// New builds an inferrer over an explicitly injected checker.
func New(checker nancheck.Checker, opts Options) *Inferrer {
	if checker == nil {
		panic("infer: nil checker")
	}
	return &Inferrer{checker: checker, opts: opts.withDefaults()}
}

// InferDomain binds the checker to the model and searches for safe ranges.
// Fast path: if the default range [0, 1] already passes, it is the answer.
// Most models are well-behaved on the unit interval and the full search is
// not worth its queries.
func (inf *Inferrer) InferDomain(ctx context.Context, model executor.Model) (domain.RangeSet, error) {
	if err := inf.checker.LoadModel(ctx, model); err != nil {
		return nil, fmt.Errorf("loading model into checker: %w", err)
	}
	ok, err := inf.checker.Decide(ctx, domain.DefaultRange.Low, domain.DefaultRange.High)
	if err != nil {
		return nil, err
	}
	if ok {
		return domain.RangeSet{domain.DefaultRange}, nil
	}
	return inf.search(ctx)
}

func (inf *Inferrer) search(ctx context.Context) (domain.RangeSet, error) {
	log := klog.FromContext(ctx)
	o := inf.opts

	var ranges domain.RangeSet
	for i := 0; i < o.SeedPoints; i++ {
		p := seedPoint(i, o.SeedPoints)

		// Seed points are processed in ascending order, so any covering
		// range is necessarily the last one appended.
		if ranges.Contains(p) {
			continue
		}

		ok, err := inf.checker.Decide(ctx, p, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		// Try to extend the previous range up to p before paying for a
		// boundary search.
		if len(ranges) > 0 {
			last := &ranges[len(ranges)-1]
			ok, err := inf.checker.Decide(ctx, last.Low, p)
			if err != nil {
				return nil, err
			}
			if ok {
				last.High = p
				continue
			}
		}

		lastHigh := o.Lo
		if len(ranges) > 0 {
			lastHigh = ranges[len(ranges)-1].High
		}

		left, err := inf.bisect(ctx, lastHigh, p, func(ctx context.Context, x float64) (bool, error) {
			return inf.checker.Decide(ctx, x, p)
		})
		if err != nil {
			return nil, err
		}
		// The upper boundary is the same bisection mirrored: searching
		// [-Hi, -p] for the negated bound keeps the false...true shape.
		negRight, err := inf.bisect(ctx, -o.Hi, -p, func(ctx context.Context, x float64) (bool, error) {
			return inf.checker.Decide(ctx, left, -x)
		})
		if err != nil {
			return nil, err
		}
		right := -negRight
		// The left bisect can land exactly on the previous range's upper
		// bound when that bound itself passes the checker against p, even
		// though the extension attempt failed. Appending would create
		// touching ranges, so grow the previous range instead.
		if len(ranges) > 0 && left == ranges[len(ranges)-1].High {
			ranges[len(ranges)-1].High = right
			continue
		}
		ranges = append(ranges, domain.Range{Low: left, High: right})
	}

	if len(ranges) == 0 {
		log.Info("no NaN-safe range found, callers should fall back to the default range", "lo", o.Lo, "hi", o.Hi)
		return nil, nil
	}
	log.V(1).Info("inferred NaN-safe domain", "ranges", len(ranges))
	return ranges, nil
}

// seedPoint returns the i-th of n points evenly spaced over [-1, 1].
func seedPoint(i, n int) float64 {
	if n == 1 {
		return -1
	}
	return -1 + 2*float64(i)/float64(n-1)
}

// bisect finds the false-to-true transition of safe over [lo, hi], assuming
// monotonicity in the form
//
//	false false ... false true ... true
//	lo                         ...  hi
//
// and returns a point within Eps of the transition. If lo == hi, or safe
// already accepts lo, there is no boundary to find and lo is returned
// without further queries.
func (inf *Inferrer) bisect(ctx context.Context, lo, hi float64, safe func(context.Context, float64) (bool, error)) (float64, error) {
	if lo == hi {
		return lo, nil
	}
	ok, err := safe(ctx, lo)
	if err != nil {
		return 0, err
	}
	if ok {
		return lo, nil
	}
	for hi-lo > inf.opts.Eps {
		mid := (lo + hi) / 2
		ok, err := safe(ctx, mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}
