// Package native is the pure-Go reference backend: a direct interpreter for
// the graph model format. It exists so that domain inference works without
// any native runtime installed, and serves as the reference side of
// differential runs.
package native

import (
	"context"
	"fmt"

	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/graph"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

const BackendName = "native"

func init() {
	executor.Register(BackendName, executor.Backend{
		New: func() (executor.Executor, error) { return New(), nil },
		LoadModel: func(path string) (executor.Model, error) {
			return graph.Load(path)
		},
	})
}

type Executor struct{}

var _ executor.Executor = (*Executor)(nil)

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, model executor.Model, inputs tensor.Map) (tensor.Map, error) {
	g, ok := model.(*graph.Graph)
	if !ok {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("unsupported model type %T", model)}
	}

	values := make(map[string]*tensor.Tensor, len(g.Inputs)+len(g.Nodes))
	for _, ts := range g.Inputs {
		in, ok := inputs[ts.Name]
		if !ok {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("missing input tensor %q", ts.Name)}
		}
		if err := in.Matches(ts); err != nil {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
		}
		values[ts.Name] = in
	}

	order, err := g.EvaluationOrder(g.Outputs)
	if err != nil {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, ok := g.Node(name)
		if !ok {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("node %q not found", name)}
		}
		out, err := evaluateNode(node, values)
		if err != nil {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
		}
		values[name] = out
	}

	outputs := make(tensor.Map, len(g.Outputs))
	for _, name := range g.Outputs {
		t, ok := values[name]
		if !ok {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("output tensor %q was not computed", name)}
		}
		outputs[name] = t
	}
	return outputs, nil
}
