package tensor

import (
	"math"
	"testing"

	"github.com/tensorfuzz/domaininfer/pkg/spec"
)

func TestHasNaN(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   bool
	}{
		{"clean", []float64{1, 2, 3}, false},
		{"nan", []float64{1, math.NaN(), 3}, true},
		{"posinf", []float64{1, math.Inf(1), 3}, true},
		{"neginf", []float64{math.Inf(-1)}, true},
		{"empty", nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := &Tensor{Shape: []int64{int64(len(test.values))}, DType: spec.Float64, Values: test.values}
			if got := tr.HasNaN(); got != test.want {
				t.Errorf("HasNaN() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestMapHasNaN(t *testing.T) {
	clean := &Tensor{Shape: []int64{1}, DType: spec.Float64, Values: []float64{1}}
	dirty := &Tensor{Shape: []int64{1}, DType: spec.Float64, Values: []float64{math.NaN()}}

	if (Map{"a": clean}).HasNaN() {
		t.Errorf("clean map reported NaN")
	}
	if !(Map{"a": clean, "b": dirty}).HasNaN() {
		t.Errorf("map with NaN tensor not reported")
	}
}

func TestMatches(t *testing.T) {
	ts := spec.TensorSpec{Name: "x", Shape: []int64{1, 3}, DType: spec.Float32}
	good, err := New(ts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := good.Matches(ts); err != nil {
		t.Errorf("Matches failed for conforming tensor: %v", err)
	}

	wrongDType := good.Clone()
	wrongDType.DType = spec.Float64
	if err := wrongDType.Matches(ts); err == nil {
		t.Errorf("expected dtype mismatch error")
	}

	wrongShape := good.Clone()
	wrongShape.Shape = []int64{3, 1}
	if err := wrongShape.Matches(ts); err == nil {
		t.Errorf("expected shape mismatch error")
	}

	short := good.Clone()
	short.Values = short.Values[:2]
	if err := short.Matches(ts); err == nil {
		t.Errorf("expected element count mismatch error")
	}
}
