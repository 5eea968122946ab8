package native

import (
	"fmt"
	"math"

	"github.com/tensorfuzz/domaininfer/pkg/graph"
	"github.com/tensorfuzz/domaininfer/pkg/spec"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

func evaluateNode(node *graph.Node, values map[string]*tensor.Tensor) (*tensor.Tensor, error) {
	if node.Op == graph.OpConst {
		return constTensor(node)
	}

	args := make([]*tensor.Tensor, len(node.Inputs))
	for i, dep := range node.Inputs {
		src, ok := values[dep]
		if !ok {
			return nil, fmt.Errorf("node %q: input tensor %q not available", node.Name, dep)
		}
		args[i] = src
	}

	switch node.Op {
	case graph.OpNeg:
		return unary(args[0], func(x float64) float64 { return -x }), nil
	case graph.OpExp:
		return unary(args[0], math.Exp), nil
	case graph.OpLog:
		return unary(args[0], math.Log), nil
	case graph.OpSqrt:
		return unary(args[0], math.Sqrt), nil
	case graph.OpReLU:
		return unary(args[0], func(x float64) float64 { return math.Max(x, 0) }), nil
	case graph.OpAdd:
		return binary(node.Name, args[0], args[1], func(a, b float64) float64 { return a + b })
	case graph.OpSub:
		return binary(node.Name, args[0], args[1], func(a, b float64) float64 { return a - b })
	case graph.OpMul:
		return binary(node.Name, args[0], args[1], func(a, b float64) float64 { return a * b })
	case graph.OpDiv:
		return binary(node.Name, args[0], args[1], func(a, b float64) float64 { return a / b })
	case graph.OpPow:
		return binary(node.Name, args[0], args[1], math.Pow)
	case graph.OpRMSNorm:
		return rmsNorm(args[0], node.Epsilon), nil
	case graph.OpSoftmax:
		return softmax(args[0]), nil
	}
	return nil, fmt.Errorf("node %q: unsupported op %q", node.Name, node.Op)
}

func constTensor(node *graph.Node) (*tensor.Tensor, error) {
	shape := node.Shape
	if shape == nil {
		shape = []int64{int64(len(node.Value))}
	}
	n := int64(1)
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("node %q: invalid shape %v", node.Name, shape)
		}
		n *= dim
	}
	if n != int64(len(node.Value)) {
		return nil, fmt.Errorf("node %q: %d values for shape %v", node.Name, len(node.Value), shape)
	}
	return &tensor.Tensor{
		Shape:  append([]int64(nil), shape...),
		DType:  spec.Float64,
		Values: append([]float64(nil), node.Value...),
	}, nil
}

func unary(src *tensor.Tensor, f func(float64) float64) *tensor.Tensor {
	out := src.Clone()
	for i, v := range out.Values {
		out.Values[i] = f(v)
	}
	return out
}

// binary applies f elementwise. A one-element operand broadcasts against the
// other side; anything else must match in element count.
func binary(name string, a, b *tensor.Tensor, f func(a, b float64) float64) (*tensor.Tensor, error) {
	switch {
	case len(a.Values) == len(b.Values):
		out := a.Clone()
		for i := range out.Values {
			out.Values[i] = f(a.Values[i], b.Values[i])
		}
		return out, nil
	case len(b.Values) == 1:
		out := a.Clone()
		for i := range out.Values {
			out.Values[i] = f(a.Values[i], b.Values[0])
		}
		return out, nil
	case len(a.Values) == 1:
		out := b.Clone()
		for i := range out.Values {
			out.Values[i] = f(a.Values[0], b.Values[i])
		}
		return out, nil
	}
	return nil, fmt.Errorf("node %q: operand sizes %d and %d do not match", name, len(a.Values), len(b.Values))
}

func rmsNorm(src *tensor.Tensor, epsilon float64) *tensor.Tensor {
	if epsilon == 0 {
		epsilon = 1e-5
	}
	out := src.Clone()
	sumX2 := 0.0
	for _, v := range out.Values {
		sumX2 += v * v
	}
	mean := sumX2 / float64(len(out.Values))
	rms := 1.0 / math.Sqrt(mean+epsilon)
	for i := range out.Values {
		out.Values[i] *= rms
	}
	return out
}

func softmax(src *tensor.Tensor) *tensor.Tensor {
	out := src.Clone()
	max := math.Inf(-1)
	for _, v := range out.Values {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i, v := range out.Values {
		e := math.Exp(v - max)
		out.Values[i] = e
		sum += e
	}
	for i := range out.Values {
		out.Values[i] /= sum
	}
	return out
}
