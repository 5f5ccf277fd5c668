package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// SessionConfig describes how a model session is created.
type SessionConfig struct {
	ModelPath   string
	LibraryPath string
	Device      string
	NumThreads  int
	// OutputNames restricts the outputs to fetch; empty means all of them.
	OutputNames []string
}

// Session wraps a dynamic ONNX Runtime session with a single input.
type Session struct {
	session *onnxruntime_go.DynamicAdvancedSession
	input   onnxruntime_go.InputOutputInfo
	outputs []onnxruntime_go.InputOutputInfo
	device  string
	mu      sync.Mutex
}

// NewSession validates the model file, initializes the runtime and opens the session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	gpu, err := GPUConfigForDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if err := Init(cfg.LibraryPath, gpu.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected 1 model input, got %d", len(inputs))
	}
	if len(outputs) == 0 {
		return nil, errors.New("model has no outputs")
	}
	selected, err := selectOutputs(outputs, cfg.OutputNames)
	if err != nil {
		return nil, err
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("destroying session options", "error", err)
		}
	}()
	if err := configureGPU(opts, gpu); err != nil {
		return nil, err
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	names := make([]string, len(selected))
	for i, o := range selected {
		names[i] = o.Name
	}
	sess, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath, []string{inputs[0].Name}, names, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	device := cfg.Device
	if device == "" {
		device = DeviceCPU
	}
	slog.Debug("ONNX session ready", "model", cfg.ModelPath, "input", inputs[0].Name, "outputs", names, "device", device)
	return &Session{session: sess, input: inputs[0], outputs: selected, device: device}, nil
}

func selectOutputs(all []onnxruntime_go.InputOutputInfo, names []string) ([]onnxruntime_go.InputOutputInfo, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]onnxruntime_go.InputOutputInfo, 0, len(names))
	for _, n := range names {
		found := false
		for _, o := range all {
			if o.Name == n {
				out = append(out, o)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("model has no output named %q", n)
		}
	}
	return out, nil
}

// Device returns the device the session was configured for.
func (s *Session) Device() string { return s.device }

// InputShape returns the declared input shape; dynamic dimensions are -1.
func (s *Session) InputShape() []int64 {
	return append([]int64(nil), s.input.Dimensions...)
}

// OutputNames returns the names of the fetched outputs in order.
func (s *Session) OutputNames() []string {
	names := make([]string, len(s.outputs))
	for i, o := range s.outputs {
		names[i] = o.Name
	}
	return names
}

// Output is a copied model output.
type Output struct {
	Name    string
	Shape   []int64
	Float32 []float32
	Int64   []int64
}

// Run feeds t to the model and copies every output out of native memory.
func (s *Session) Run(t Tensor) ([]Output, error) {
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("invalid tensor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("destroying input tensor", "error", err)
		}
	}()

	values := make([]onnxruntime_go.Value, len(s.outputs))
	if err := s.session.Run([]onnxruntime_go.Value{input}, values); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]Output, len(values))
	for i, v := range values {
		o := Output{Name: s.outputs[i].Name, Shape: append([]int64(nil), v.GetShape()...)}
		switch tv := v.(type) {
		case *onnxruntime_go.Tensor[float32]:
			o.Float32 = make([]float32, len(tv.GetData()))
			copy(o.Float32, tv.GetData())
		case *onnxruntime_go.Tensor[int64]:
			o.Int64 = make([]int64, len(tv.GetData()))
			copy(o.Int64, tv.GetData())
		case *onnxruntime_go.Tensor[int32]:
			o.Int64 = make([]int64, 0, len(tv.GetData()))
			for _, x := range tv.GetData() {
				o.Int64 = append(o.Int64, int64(x))
			}
		default:
			err = fmt.Errorf("output %q has unsupported type %T", o.Name, v)
		}
		if derr := v.Destroy(); derr != nil {
			slog.Warn("destroying output tensor", "error", derr)
		}
		out[i] = o
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the native session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
