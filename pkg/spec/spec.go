// Package spec describes the input surface of a model: the names, shapes and
// numeric types of the tensors it expects. An InputSpec is derived once from a
// model and is read-only afterwards.
package spec

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DType tags the numeric element type of a tensor.
type DType string

const (
	Float16 DType = "float16"
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int32   DType = "int32"
	Int64   DType = "int64"
)

// ParseDType returns the DType for a type tag string.
func ParseDType(s string) (DType, error) {
	d := DType(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown dtype %q", s)
	}
	return d, nil
}

func (d DType) Valid() bool {
	switch d {
	case Float16, Float32, Float64, Int32, Int64:
		return true
	}
	return false
}

// ShapeError reports an invalid tensor shape, e.g. a negative dimension.
type ShapeError struct {
	Tensor string
	Shape  []int64
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid shape %v for tensor %q", e.Shape, e.Tensor)
}

// TensorSpec describes one input tensor. Zero-sized dimensions are legal;
// negative dimensions are not.
type TensorSpec struct {
	Name  string  `json:"name"`
	Shape []int64 `json:"shape"`
	DType DType   `json:"dtype"`
}

func (ts TensorSpec) Validate() error {
	if ts.Name == "" {
		return fmt.Errorf("tensor spec has no name")
	}
	if !ts.DType.Valid() {
		return fmt.Errorf("tensor %q: unknown dtype %q", ts.Name, ts.DType)
	}
	for _, dim := range ts.Shape {
		if dim < 0 {
			return &ShapeError{Tensor: ts.Name, Shape: ts.Shape}
		}
	}
	return nil
}

// NumElements returns the number of elements a tensor of this shape holds.
// A scalar (rank 0) has one element.
func (ts TensorSpec) NumElements() (int64, error) {
	n := int64(1)
	for _, dim := range ts.Shape {
		if dim < 0 {
			return 0, &ShapeError{Tensor: ts.Name, Shape: ts.Shape}
		}
		n *= dim
	}
	return n, nil
}

// InputSpec maps tensor names to their specs, preserving the order in which
// the model declares them. Lookup is by name; iteration follows declaration
// order so positional consumers see a stable, canonical ordering.
type InputSpec struct {
	m *orderedmap.OrderedMap[string, TensorSpec]
}

func NewInputSpec() *InputSpec {
	return &InputSpec{m: orderedmap.New[string, TensorSpec]()}
}

// Add appends a tensor spec. Declaring the same name twice is an error.
func (s *InputSpec) Add(ts TensorSpec) error {
	if err := ts.Validate(); err != nil {
		return err
	}
	if _, ok := s.m.Get(ts.Name); ok {
		return fmt.Errorf("duplicate input tensor %q", ts.Name)
	}
	s.m.Set(ts.Name, ts)
	return nil
}

func (s *InputSpec) Get(name string) (TensorSpec, bool) {
	return s.m.Get(name)
}

func (s *InputSpec) Len() int {
	return s.m.Len()
}

// Tensors returns the specs in declaration order.
func (s *InputSpec) Tensors() []TensorSpec {
	out := make([]TensorSpec, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Names returns the tensor names in declaration order.
func (s *InputSpec) Names() []string {
	out := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
