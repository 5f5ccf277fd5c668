package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

const (
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"

	// DeviceCPU and DeviceCUDA are the accepted device names.
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// LibraryEnv overrides the shared library search when set.
const LibraryEnv = "ONNXRUNTIME_LIB"

var initMu sync.Mutex

// GPUConfig holds CUDA execution provider settings.
type GPUConfig struct {
	UseGPU              bool
	DeviceID            int
	GPUMemLimit         uint64
	CUDNNConvAlgoSearch string
}

// GPUConfigForDevice parses a device name such as "cpu", "cuda" or "cuda:1".
func GPUConfigForDevice(device string) (GPUConfig, error) {
	switch {
	case device == "" || device == DeviceCPU:
		return GPUConfig{}, nil
	case device == DeviceCUDA:
		return GPUConfig{UseGPU: true, CUDNNConvAlgoSearch: "DEFAULT"}, nil
	case len(device) > len(DeviceCUDA)+1 && device[:len(DeviceCUDA)+1] == DeviceCUDA+":":
		id, err := strconv.Atoi(device[len(DeviceCUDA)+1:])
		if err != nil || id < 0 {
			return GPUConfig{}, fmt.Errorf("invalid cuda device %q", device)
		}
		return GPUConfig{UseGPU: true, DeviceID: id, CUDNNConvAlgoSearch: "DEFAULT"}, nil
	default:
		return GPUConfig{}, fmt.Errorf("unknown device %q (want cpu, cuda or cuda:N)", device)
	}
}

// configureGPU appends the CUDA execution provider to the session options.
func configureGPU(opts *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("destroying CUDA provider options", "error", err)
		}
	}()

	settings := map[string]string{
		"device_id":                 strconv.Itoa(cfg.DeviceID),
		"do_copy_in_default_stream": "1",
	}
	if cfg.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(cfg.GPUMemLimit, 10)
	}
	if cfg.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = cfg.CUDNNConvAlgoSearch
	}
	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// libraryName returns the shared library file name for the running OS.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return libLinux, nil
	case "darwin":
		return libDarwin, nil
	case "windows":
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LibraryCandidates lists the paths probed for the runtime library, in order.
func LibraryCandidates(explicit string, useGPU bool) []string {
	var out []string
	if explicit != "" {
		out = append(out, explicit)
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		out = append(out, env)
	}
	name, err := libraryName()
	if err != nil {
		return out
	}
	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	out = append(out,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)
	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			out = append(out, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		out = append(out, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return out
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// Init locates the runtime library and initializes the environment once.
// Later calls are no-ops.
func Init(libraryPath string, useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	found := ""
	for _, p := range LibraryCandidates(libraryPath, useGPU) {
		if _, err := os.Stat(p); err == nil {
			found = p
			break
		}
	}
	if found == "" {
		return fmt.Errorf("ONNX Runtime library not found (set %s or onnx_library_path)", LibraryEnv)
	}
	onnxruntime_go.SetSharedLibraryPath(found)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", found, "gpu", useGPU)
	return nil
}
