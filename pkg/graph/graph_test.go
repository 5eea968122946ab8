package graph

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tensorfuzz/domaininfer/pkg/spec"
)

func validGraph() *Graph {
	return &Graph{
		Name:   "square-plus-one",
		Inputs: []spec.TensorSpec{{Name: "x", Shape: []int64{2}, DType: spec.Float32}},
		Nodes: []Node{
			{Name: "one", Op: OpConst, Value: []float64{1}},
			{Name: "sq", Op: OpMul, Inputs: []string{"x", "x"}},
			{Name: "y", Op: OpAdd, Inputs: []string{"sq", "one"}},
		},
		Outputs: []string{"y"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *Graph)
		wantErr string
	}{
		{"valid", func(g *Graph) {}, ""},
		{"no outputs", func(g *Graph) { g.Outputs = nil }, "no outputs"},
		{"duplicate node name", func(g *Graph) { g.Nodes[1].Name = "one" }, "duplicate name"},
		{"node shadows input", func(g *Graph) { g.Nodes[1].Name = "x" }, "duplicate name"},
		{"unknown op", func(g *Graph) { g.Nodes[1].Op = "matmul" }, "unknown op"},
		{"wrong arity", func(g *Graph) { g.Nodes[1].Inputs = []string{"x"} }, "takes 2 inputs"},
		{"const without value", func(g *Graph) { g.Nodes[0].Value = nil }, "const has no value"},
		{"unknown input", func(g *Graph) { g.Nodes[1].Inputs = []string{"x", "ghost"} }, "unknown input"},
		{"unknown output", func(g *Graph) { g.Outputs = []string{"ghost"} }, "unknown output"},
		{"cycle", func(g *Graph) {
			g.Nodes = append(g.Nodes, Node{Name: "a", Op: OpAdd, Inputs: []string{"b", "one"}},
				Node{Name: "b", Op: OpAdd, Inputs: []string{"a", "one"}})
			g.Outputs = []string{"b"}
		}, "could not be computed"},
		{"bad input spec", func(g *Graph) { g.Inputs[0].Shape = []int64{-1} }, "invalid"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := validGraph()
			test.mutate(g)
			err := g.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestEvaluationOrder(t *testing.T) {
	g := validGraph()
	order, err := g.EvaluationOrder(g.Outputs)
	if err != nil {
		t.Fatalf("EvaluationOrder failed: %v", err)
	}

	seen := map[string]int{}
	for i, name := range order {
		seen[name] = i
	}
	for _, name := range []string{"one", "sq", "y"} {
		if _, ok := seen[name]; !ok {
			t.Fatalf("order %v is missing node %q", order, name)
		}
	}
	if seen["sq"] > seen["y"] || seen["one"] > seen["y"] {
		t.Errorf("order %v evaluates y before its dependencies", order)
	}
	// Inputs are implicitly available and never scheduled.
	if _, ok := seen["x"]; ok {
		t.Errorf("order %v schedules the input tensor", order)
	}
}

func TestInputSpecOrder(t *testing.T) {
	g := &Graph{
		Inputs: []spec.TensorSpec{
			{Name: "b", Shape: []int64{1}, DType: spec.Float32},
			{Name: "a", Shape: []int64{1}, DType: spec.Float32},
		},
		Nodes:   []Node{{Name: "y", Op: OpAdd, Inputs: []string{"a", "b"}}},
		Outputs: []string{"y"},
	}
	s, err := g.InputSpec()
	if err != nil {
		t.Fatalf("InputSpec failed: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, s.Names()); diff != "" {
		t.Errorf("input order mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := validGraph()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	g := validGraph()
	g.Outputs = []string{"ghost"}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected Load to reject a graph with unknown outputs")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected Load to fail on a missing file")
	}
}
