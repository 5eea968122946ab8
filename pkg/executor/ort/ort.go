//go:build ort && cgo

// Package ort is the ONNX Runtime execution backend. It is compiled in only
// with the "ort" build tag since it needs the onnxruntime shared library at
// runtime.
package ort

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tensorfuzz/domaininfer/pkg/executor"
	"github.com/tensorfuzz/domaininfer/pkg/spec"
	"github.com/tensorfuzz/domaininfer/pkg/tensor"
)

const BackendName = "ort"

func init() {
	executor.Register(BackendName, executor.Backend{
		New: func() (executor.Executor, error) { return New(), nil },
		LoadModel: func(path string) (executor.Model, error) {
			return LoadModel(path)
		},
	})
}

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

// initRuntime initializes the ONNX Runtime environment once per process.
// ONNXRUNTIME_SHARED_LIBRARY overrides the shared library location.
func initRuntime() error {
	runtimeInitOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		runtimeInitErr = ort.InitializeEnvironment()
	})
	return runtimeInitErr
}

// Model is an ONNX model file. Input and output names and specs are read
// from the file once at load time.
type Model struct {
	Path string

	inputs      []spec.TensorSpec
	outputNames []string
}

var _ executor.Model = (*Model)(nil)

// LoadModel reads the input/output signature of an ONNX model file.
// Symbolic (free) dimensions are concretized to 1.
func LoadModel(path string) (*Model, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("reading model signature %q: %w", path, err)
	}
	m := &Model{Path: path}
	for _, info := range inputs {
		dtype, err := dtypeFromORT(info.DataType)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", info.Name, err)
		}
		shape := make([]int64, len(info.Dimensions))
		for i, dim := range info.Dimensions {
			if dim < 0 {
				dim = 1
			}
			shape[i] = dim
		}
		m.inputs = append(m.inputs, spec.TensorSpec{Name: info.Name, Shape: shape, DType: dtype})
	}
	for _, info := range outputs {
		m.outputNames = append(m.outputNames, info.Name)
	}
	return m, nil
}

func (m *Model) InputSpec() (*spec.InputSpec, error) {
	s := spec.NewInputSpec()
	for _, ts := range m.inputs {
		if err := s.Add(ts); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func dtypeFromORT(t ort.TensorElementDataType) (spec.DType, error) {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return spec.Float32, nil
	case ort.TensorElementDataTypeDouble:
		return spec.Float64, nil
	case ort.TensorElementDataTypeInt32:
		return spec.Int32, nil
	case ort.TensorElementDataTypeInt64:
		return spec.Int64, nil
	}
	return "", fmt.Errorf("unsupported onnx element type %v", t)
}

// Executor runs ONNX models through onnxruntime. Sessions are cached per
// model path: a domain inference issues many executions against one model.
type Executor struct {
	mu       sync.Mutex
	sessions map[string]*ort.DynamicAdvancedSession
}

var _ executor.Executor = (*Executor)(nil)

func New() *Executor {
	return &Executor{sessions: make(map[string]*ort.DynamicAdvancedSession)}
}

func (e *Executor) session(m *Model) (*ort.DynamicAdvancedSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[m.Path]; ok {
		return s, nil
	}
	inputNames := make([]string, len(m.inputs))
	for i, ts := range m.inputs {
		inputNames[i] = ts.Name
	}
	s, err := ort.NewDynamicAdvancedSession(m.Path, inputNames, m.outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("creating session for %q: %w", m.Path, err)
	}
	e.sessions[m.Path] = s
	return s, nil
}

// Close destroys all cached sessions.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for path, s := range e.sessions {
		s.Destroy()
		delete(e.sessions, path)
	}
	return nil
}

func (e *Executor) Execute(ctx context.Context, model executor.Model, inputs tensor.Map) (tensor.Map, error) {
	m, ok := model.(*Model)
	if !ok {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("unsupported model type %T", model)}
	}
	if err := initRuntime(); err != nil {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
	}
	session, err := e.session(m)
	if err != nil {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
	}

	inputValues := make([]ort.Value, len(m.inputs))
	defer func() {
		for _, v := range inputValues {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for i, ts := range m.inputs {
		in, ok := inputs[ts.Name]
		if !ok {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("missing input tensor %q", ts.Name)}
		}
		if err := in.Matches(ts); err != nil {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
		}
		v, err := ortTensor(ts, in)
		if err != nil {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: err}
		}
		inputValues[i] = v
	}

	outputValues := make([]ort.Value, len(m.outputNames))
	if err := session.Run(inputValues, outputValues); err != nil {
		return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("running session: %w", err)}
	}
	defer func() {
		for _, v := range outputValues {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	outputs := make(tensor.Map, len(m.outputNames))
	for i, name := range m.outputNames {
		t, err := fromORTValue(outputValues[i])
		if err != nil {
			return nil, &executor.ExecutionError{Backend: BackendName, Err: fmt.Errorf("output %q: %w", name, err)}
		}
		outputs[name] = t
	}
	return outputs, nil
}

func ortTensor(ts spec.TensorSpec, in *tensor.Tensor) (ort.Value, error) {
	shape := ort.NewShape(in.Shape...)
	switch ts.DType {
	case spec.Float32:
		data := make([]float32, len(in.Values))
		for i, v := range in.Values {
			data[i] = float32(v)
		}
		return ort.NewTensor(shape, data)
	case spec.Float64:
		return ort.NewTensor(shape, append([]float64(nil), in.Values...))
	case spec.Int32:
		data := make([]int32, len(in.Values))
		for i, v := range in.Values {
			data[i] = int32(v)
		}
		return ort.NewTensor(shape, data)
	case spec.Int64:
		data := make([]int64, len(in.Values))
		for i, v := range in.Values {
			data[i] = int64(v)
		}
		return ort.NewTensor(shape, data)
	}
	return nil, fmt.Errorf("unsupported input dtype %s", ts.DType)
}

func fromORTValue(v ort.Value) (*tensor.Tensor, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		out := &tensor.Tensor{Shape: t.GetShape(), DType: spec.Float32}
		for _, x := range t.GetData() {
			out.Values = append(out.Values, float64(x))
		}
		return out, nil
	case *ort.Tensor[float64]:
		out := &tensor.Tensor{Shape: t.GetShape(), DType: spec.Float64}
		out.Values = append(out.Values, t.GetData()...)
		return out, nil
	case *ort.Tensor[int32]:
		out := &tensor.Tensor{Shape: t.GetShape(), DType: spec.Int32}
		for _, x := range t.GetData() {
			out.Values = append(out.Values, float64(x))
		}
		return out, nil
	case *ort.Tensor[int64]:
		out := &tensor.Tensor{Shape: t.GetShape(), DType: spec.Int64}
		for _, x := range t.GetData() {
			out.Values = append(out.Values, float64(x))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported output value type %T", v)
}
