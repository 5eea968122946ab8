// Package sampler draws concrete model inputs from an inferred domain. Every
// tensor in the spec is filled i.i.d. uniformly over one shared range; the
// randomness source is always explicit so runs can be reproduced.
package sampler

import (
	"fmt"
	"math"
	"time"

	"github.com/x448/float16"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
	"github.com/tensorfuzz/domaininfer/pkg/spec"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

// NewRand returns a seeded randomness source for sampling.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func defaultRand() *rand.Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

// Sample draws one input mapping: for every tensor in ispec, values are drawn
// i.i.d. uniformly over [r.Low, r.High] and realized at the tensor's declared
// dtype. A nil rng gets a time-seeded source.
func Sample(ispec *spec.InputSpec, r domain.Range, rng *rand.Rand) (tensor.Map, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = defaultRand()
	}
	u := distuv.Uniform{Min: r.Low, Max: r.High, Src: rng}

	inputs := make(tensor.Map, ispec.Len())
	for _, ts := range ispec.Tensors() {
		t, err := tensor.New(ts)
		if err != nil {
			return nil, err
		}
		for i := range t.Values {
			t.Values[i] = realize(u.Rand(), ts.DType)
		}
		inputs[ts.Name] = t
	}
	return inputs, nil
}

// realize rounds a draw to a value representable at the target dtype, so the
// backend sees exactly what a real tensor of that type would hold.
func realize(v float64, d spec.DType) float64 {
	switch d {
	case spec.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case spec.Float32:
		return float64(float32(v))
	case spec.Int32, spec.Int64:
		return math.Trunc(v)
	default:
		return v
	}
}

// SampleFromSet resolves a concrete range from the set before delegating to
// Sample: one range is chosen uniformly at random, or DefaultRange when the
// set is nil or empty (the degraded "no safe range" fallback).
func SampleFromSet(ispec *spec.InputSpec, set domain.RangeSet, rng *rand.Rand) (tensor.Map, error) {
	if rng == nil {
		rng = defaultRand()
	}
	r := domain.DefaultRange
	if len(set) > 0 {
		r = set[rng.Intn(len(set))]
	}
	return Sample(ispec, r, rng)
}

// SampleFromFile loads a persisted range-set artifact and samples from it.
func SampleFromFile(ispec *spec.InputSpec, path string, rng *rand.Rand) (tensor.Map, error) {
	set, err := domain.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading range set: %w", err)
	}
	return SampleFromSet(ispec, set, rng)
}
