// Package tensor holds the dense tensors exchanged with execution backends.
// Values are carried as float64 regardless of the declared dtype; the dtype
// records what the backend should materialize them as.
package tensor

import (
	"fmt"
	"math"

	"github.com/tensorfuzz/domaininfer/pkg/spec"
)

type Tensor struct {
	Shape  []int64
	DType  spec.DType
	Values []float64
}

// New allocates a zero tensor for the given spec.
func New(ts spec.TensorSpec) (*Tensor, error) {
	n, err := ts.NumElements()
	if err != nil {
		return nil, err
	}
	return &Tensor{
		Shape:  append([]int64(nil), ts.Shape...),
		DType:  ts.DType,
		Values: make([]float64, n),
	}, nil
}

func (t *Tensor) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

// HasNaN reports whether any element is NaN or ±Inf. Infinities count as
// unsafe because a downstream oracle comparison on them is as meaningless as
// one on NaN.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape:  append([]int64(nil), t.Shape...),
		DType:  t.DType,
		Values: append([]float64(nil), t.Values...),
	}
}

// Map is a named collection of tensors, as passed to and returned from an
// executor.
type Map map[string]*Tensor

// HasNaN reports whether any tensor in the map has a non-finite element.
func (m Map) HasNaN() bool {
	for _, t := range m {
		if t.HasNaN() {
			return true
		}
	}
	return false
}

// Matches checks a tensor against its declared spec.
func (t *Tensor) Matches(ts spec.TensorSpec) error {
	if t.DType != ts.DType {
		return fmt.Errorf("tensor %q: dtype %s, want %s", ts.Name, t.DType, ts.DType)
	}
	if len(t.Shape) != len(ts.Shape) {
		return fmt.Errorf("tensor %q: rank %d, want %d", ts.Name, len(t.Shape), len(ts.Shape))
	}
	for i, dim := range ts.Shape {
		if t.Shape[i] != dim {
			return fmt.Errorf("tensor %q: shape %v, want %v", ts.Name, t.Shape, ts.Shape)
		}
	}
	if int64(len(t.Values)) != t.NumElements() {
		return fmt.Errorf("tensor %q: %d values for shape %v", ts.Name, len(t.Values), t.Shape)
	}
	return nil
}
