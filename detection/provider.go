package detection

import (
	"errors"
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// DetectionResult represents the raw face boxes found in one frame
type DetectionResult struct {
	Rects       []image.Rectangle
	Confidences []float64 // 1.0 for detectors that do not score their boxes
}

// Global debug function for detection package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// ModelConfig names the model files a provider may load
type ModelConfig struct {
	CascadePath   string  // Haar cascade XML
	DNNModelPath  string  // e.g. res10_300x300_ssd_iter_140000.caffemodel
	DNNConfigPath string  // e.g. deploy.prototxt
	MinConfidence float64 // DNN score threshold
}

// HasDNN reports whether DNN model files are configured
func (mc ModelConfig) HasDNN() bool {
	return mc.DNNModelPath != ""
}

// InferenceProvider defines the interface for face inference backends
type InferenceProvider interface {
	Initialize(cfg ModelConfig) error
	Detect(frame gocv.Mat) (*DetectionResult, error)
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo contains information about the inference provider
type ProviderInfo struct {
	Type     string        // "DNN" or "CASCADE"
	Backend  string        // "CUDA", "CPU"
	Model    string        // Model file in use
	InitTime time.Duration // Time taken to initialize
}

// ErrNoProvider is returned when no configured backend could be initialized
var ErrNoProvider = errors.New("no face inference provider available")

// ProviderManager handles automatic provider selection and fallback
type ProviderManager struct {
	currentProvider InferenceProvider
	providerInfo    ProviderInfo
	gpuCheck        func() bool
}

// NewProviderManager creates a new provider manager with auto-detection
func NewProviderManager() *ProviderManager {
	return &ProviderManager{gpuCheck: hasGPUCapability}
}

// Initialize picks the best available provider.
// Order: DNN on CUDA, DNN on CPU, Haar cascade. Each candidate must pass a test inference.
func (pm *ProviderManager) Initialize(cfg ModelConfig) error {
	var candidates []InferenceProvider
	if cfg.HasDNN() {
		if pm.gpuCheck != nil && pm.gpuCheck() {
			candidates = append(candidates, &DNNProvider{UseCUDA: true})
		}
		candidates = append(candidates, &DNNProvider{})
	}
	if cfg.CascadePath != "" {
		candidates = append(candidates, &CascadeProvider{})
	}
	return pm.initializeFrom(cfg, candidates)
}

func (pm *ProviderManager) initializeFrom(cfg ModelConfig, candidates []InferenceProvider) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no model files configured", ErrNoProvider)
	}

	var errs []error
	for _, p := range candidates {
		startTime := time.Now()
		if err := p.Initialize(cfg); err != nil {
			debugMsg("PROVIDER", fmt.Sprintf("%T initialization failed: %v", p, err))
			errs = append(errs, err)
			continue
		}
		if !testProvider(p) {
			debugMsg("PROVIDER", fmt.Sprintf("%s/%s test inference failed, trying next provider",
				p.GetProviderInfo().Type, p.GetProviderInfo().Backend))
			p.Close()
			errs = append(errs, fmt.Errorf("%T: test inference failed", p))
			continue
		}

		pm.currentProvider = p
		pm.providerInfo = p.GetProviderInfo()
		pm.providerInfo.InitTime = time.Since(startTime)
		debugMsg("PROVIDER", fmt.Sprintf("%s provider initialized on %s (%v)",
			pm.providerInfo.Type, pm.providerInfo.Backend, pm.providerInfo.InitTime))
		return nil
	}

	return fmt.Errorf("%w: %v", ErrNoProvider, errors.Join(errs...))
}

// GetProvider returns the current active provider
func (pm *ProviderManager) GetProvider() InferenceProvider {
	return pm.currentProvider
}

// GetProviderInfo returns information about the current provider
func (pm *ProviderManager) GetProviderInfo() ProviderInfo {
	return pm.providerInfo
}

// Close closes the current provider
func (pm *ProviderManager) Close() error {
	if pm.currentProvider != nil {
		return pm.currentProvider.Close()
	}
	return nil
}

// hasGPUCapability checks if CUDA inference is worth attempting
func hasGPUCapability() bool {
	if !hasNVIDIAGPU() {
		debugMsg("GPU_DETECT", "No NVIDIA GPU detected")
		return false
	}
	if !hasNVIDIADriver() {
		debugMsg("GPU_DETECT", "NVIDIA GPU found but drivers not loaded")
		return false
	}
	debugMsg("GPU_DETECT", "Hardware checks passed, will test CUDA during initialization")
	return true
}

// hasNVIDIAGPU checks if NVIDIA GPU is present
func hasNVIDIAGPU() bool {
	output, err := exec.Command("lspci").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(output)), "nvidia")
}

// hasNVIDIADriver checks if NVIDIA drivers are loaded
func hasNVIDIADriver() bool {
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}

// testProvider performs a quick test inference to verify the provider works
func testProvider(provider InferenceProvider) bool {
	testFrame := gocv.NewMatWithSize(360, 640, gocv.MatTypeCV8UC3)
	defer testFrame.Close()

	_, err := provider.Detect(testFrame)
	return err == nil
}
