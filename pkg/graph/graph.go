// Package graph defines the portable computational-graph format understood by
// the native executor. Graphs are stored as JSON; construction of interesting
// graphs is a concern of the fuzzer that feeds this tool, not of this package.
package graph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tensorfuzz/domaininfer/pkg/spec"
)

// OpKind names a node operation.
type OpKind string

const (
	OpConst   OpKind = "const"
	OpAdd     OpKind = "add"
	OpSub     OpKind = "sub"
	OpMul     OpKind = "mul"
	OpDiv     OpKind = "div"
	OpNeg     OpKind = "neg"
	OpExp     OpKind = "exp"
	OpLog     OpKind = "log"
	OpSqrt    OpKind = "sqrt"
	OpPow     OpKind = "pow"
	OpReLU    OpKind = "relu"
	OpRMSNorm OpKind = "rmsnorm"
	OpSoftmax OpKind = "softmax"
)

// Node is one operation in the graph. Const nodes carry their payload in
// Value/Shape; every other op reads the named input tensors.
type Node struct {
	Name   string   `json:"name"`
	Op     OpKind   `json:"op"`
	Inputs []string `json:"inputs,omitempty"`

	// Const payload.
	Value []float64 `json:"value,omitempty"`
	Shape []int64   `json:"shape,omitempty"`

	// RMSNorm stabilizer; zero means the default (1e-5).
	Epsilon float64 `json:"epsilon,omitempty"`
}

func arity(op OpKind) (int, bool) {
	switch op {
	case OpConst:
		return 0, true
	case OpNeg, OpExp, OpLog, OpSqrt, OpReLU, OpRMSNorm, OpSoftmax:
		return 1, true
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return 2, true
	}
	return 0, false
}

// Graph is an immutable model: declared inputs, operation nodes and named
// outputs. Input and node names share one namespace.
type Graph struct {
	Name    string            `json:"name,omitempty"`
	Inputs  []spec.TensorSpec `json:"inputs"`
	Nodes   []Node            `json:"nodes"`
	Outputs []string          `json:"outputs"`
}

// Load reads and validates a graph from a JSON file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph %q: %w", path, err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing graph %q: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph %q: %w", path, err)
	}
	return &g, nil
}

// Save writes the graph as JSON.
func (g *Graph) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing graph %q: %w", path, err)
	}
	return nil
}

// InputSpec derives the declared input tensors, in declaration order.
func (g *Graph) InputSpec() (*spec.InputSpec, error) {
	s := spec.NewInputSpec()
	for _, ts := range g.Inputs {
		if err := s.Add(ts); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Validate checks name uniqueness, op arities, dependency resolution and
// output reachability. A graph that validates has a total evaluation order.
func (g *Graph) Validate() error {
	if len(g.Outputs) == 0 {
		return fmt.Errorf("graph declares no outputs")
	}
	names := make(map[string]bool)
	for _, ts := range g.Inputs {
		if err := ts.Validate(); err != nil {
			return err
		}
		if names[ts.Name] {
			return fmt.Errorf("duplicate name %q", ts.Name)
		}
		names[ts.Name] = true
	}
	for _, n := range g.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node has no name")
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate name %q", n.Name)
		}
		names[n.Name] = true
		want, ok := arity(n.Op)
		if !ok {
			return fmt.Errorf("node %q: unknown op %q", n.Name, n.Op)
		}
		if len(n.Inputs) != want {
			return fmt.Errorf("node %q: op %s takes %d inputs, got %d", n.Name, n.Op, want, len(n.Inputs))
		}
		if n.Op == OpConst && len(n.Value) == 0 {
			return fmt.Errorf("node %q: const has no value", n.Name)
		}
	}
	for _, n := range g.Nodes {
		for _, dep := range n.Inputs {
			if !names[dep] {
				return fmt.Errorf("node %q: unknown input %q", n.Name, dep)
			}
		}
	}
	for _, out := range g.Outputs {
		if !names[out] {
			return fmt.Errorf("unknown output %q", out)
		}
	}
	if _, err := g.EvaluationOrder(g.Outputs); err != nil {
		return err
	}
	return nil
}

// EvaluationOrder returns node names in a dependency-respecting order that
// covers at least the wanted tensors. Input tensors are implicitly available
// and do not appear in the result.
func (g *Graph) EvaluationOrder(want []string) ([]string, error) {
	done := make(map[string]bool)
	for _, ts := range g.Inputs {
		done[ts.Name] = true
	}

	order := make([]string, 0, len(g.Nodes))
	for {
		progress := false
		for _, n := range g.Nodes {
			if done[n.Name] {
				continue
			}
			ready := true
			for _, dep := range n.Inputs {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[n.Name] = true
				order = append(order, n.Name)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	for _, name := range want {
		if !done[name] {
			return nil, fmt.Errorf("tensor %q could not be computed (unreachable in computation graph)", name)
		}
	}

	return order, nil
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
