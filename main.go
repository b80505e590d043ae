package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"facepilot/autopilot"
	"facepilot/config"
	"facepilot/detection"
	"facepilot/overlay"
	"facepilot/pkg/history"
	"facepilot/vehicle"

	"gocv.io/x/gocv"
)

const debugDir = "/tmp/facepilot"

// Options holds command line overrides. Empty strings and unset flags leave
// the config file value in place.
type Options struct {
	ConfigPath      string
	Input           string
	Link            string
	LinkAddr        string
	JpgPath         string
	MaxFrames       int
	Debug           bool
	DebugVerbose    bool
	PreOverlayJpg   bool
	PostOverlayJpg  bool
	Overlay         bool
	TerminalOverlay bool

	set map[string]bool
}

func parseFlags(args []string) (Options, error) {
	var o Options
	fs := flag.NewFlagSet("facepilot", flag.ContinueOnError)
	fs.StringVar(&o.ConfigPath, "config", "", "Path to JSON config (defaults are used when empty)")
	fs.StringVar(&o.Input, "input", "", "Video file, stream URL or camera index")
	fs.StringVar(&o.Link, "link", "", "Command link: serial, udp or none")
	fs.StringVar(&o.LinkAddr, "link-addr", "", "Serial device or host:port for the command link")
	fs.BoolVar(&o.Debug, "debug", false, "Write per-session debug logs to "+debugDir)
	fs.BoolVar(&o.DebugVerbose, "debug-verbose", false, "Log every control step")
	fs.StringVar(&o.JpgPath, "jpg-path", "", "Directory for saved JPEG frames")
	fs.BoolVar(&o.PreOverlayJpg, "pre-overlay-jpg", false, "Save frames before the HUD is drawn (requires -jpg-path)")
	fs.BoolVar(&o.PostOverlayJpg, "post-overlay-jpg", false, "Save frames after the HUD is drawn (requires -jpg-path)")
	fs.BoolVar(&o.Overlay, "overlay", false, "Draw the autopilot HUD on frames")
	fs.BoolVar(&o.TerminalOverlay, "terminal-overlay", false, "Draw recent log lines on frames")
	fs.IntVar(&o.MaxFrames, "max-frames", 0, "Stop after this many frames (0 = until the input ends)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overlays the command line on top of cfg
func (o Options) apply(cfg config.Config) config.Config {
	if o.Input != "" {
		cfg.Input.Source = o.Input
	}
	if o.Link != "" {
		cfg.Link.Type = o.Link
	}
	if o.LinkAddr != "" {
		cfg.Link.Addr = o.LinkAddr
	}
	if o.JpgPath != "" {
		cfg.Overlay.JpgPath = o.JpgPath
	}
	if o.set["debug"] {
		cfg.Log.Debug = o.Debug
	}
	if o.set["debug-verbose"] {
		cfg.Log.Verbose = o.DebugVerbose
	}
	if o.set["pre-overlay-jpg"] {
		cfg.Overlay.PreOverlayJpg = o.PreOverlayJpg
	}
	if o.set["post-overlay-jpg"] {
		cfg.Overlay.PostOverlayJpg = o.PostOverlayJpg
	}
	if o.set["overlay"] {
		cfg.Overlay.Enabled = o.Overlay
	}
	if o.set["terminal-overlay"] {
		cfg.Overlay.Terminal = o.TerminalOverlay
	}
	return cfg
}

func loadConfig(o Options) (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return cfg, err
		}
	}
	cfg = o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLink builds the command transport selected by cfg
func newLink(cfg config.LinkConfig) (vehicle.Link, error) {
	limits := vehicle.Limits{Min: -cfg.MaxAbs, Max: cfg.MaxAbs}
	switch cfg.Type {
	case config.LinkSerial:
		return vehicle.NewSerialLink(cfg.Addr, cfg.BaudRate, limits), nil
	case config.LinkUDP:
		return vehicle.NewUDPLink(cfg.Addr, limits), nil
	case config.LinkNone:
		return &vehicle.NopLink{}, nil
	}
	return nil, fmt.Errorf("unknown link type %q", cfg.Type)
}

func openCapture(source string) (*gocv.VideoCapture, error) {
	if index, err := strconv.Atoi(source); err == nil {
		return gocv.VideoCaptureDevice(index)
	}
	return gocv.VideoCaptureFile(source)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts.MaxFrames); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, maxFrames int) error {
	terminal := history.NewBuffer(50)
	logger := NewDebugLogger(cfg.Log.Debug, cfg.Log.Verbose, debugDir, terminal)
	defer logger.Close()

	detection.SetDebugFunction(logger.Msg)
	vehicle.SetDebugFunction(logger.Msg)
	overlay.SetDebugFunction(logger.Msg)
	autopilot.SetDebugFunction(logger.Msg)
	autopilot.SetDebugVerboseFunction(logger.Verbose)

	pm := detection.NewProviderManager()
	if err := pm.Initialize(detection.ModelConfig{
		CascadePath:   cfg.Detector.CascadePath,
		DNNModelPath:  cfg.Detector.DNNModelPath,
		DNNConfigPath: cfg.Detector.DNNConfigPath,
		MinConfidence: cfg.Detector.MinConfidence,
	}); err != nil {
		return fmt.Errorf("initialize face detector: %w", err)
	}
	info := pm.GetProviderInfo()
	logger.Msg("MAIN", fmt.Sprintf("Face detector: %s/%s (%s) ready in %v", info.Type, info.Backend, info.Model, info.InitTime))

	locator := detection.NewFaceLocator(pm.GetProvider(), detection.LocatorConfig{
		MinBatteryPercent: cfg.Detector.MinBatteryPercent,
		MinFaceWidth:      cfg.Detector.MinFaceWidth,
	})
	agent := autopilot.NewAgent(locator)
	defer agent.Close()

	link, err := newLink(cfg.Link)
	if err != nil {
		return err
	}
	if err := link.Start(ctx); err != nil {
		return fmt.Errorf("start %s link: %w", cfg.Link.Type, err)
	}
	defer func() {
		if err := link.Stop(); err != nil {
			logger.Msg("LINK", fmt.Sprintf("Stop failed: %v", err))
		}
		s := link.Stats()
		logger.Msg("LINK", fmt.Sprintf("sent=%d dropped=%d failed=%d clamped=%d", s.Sent, s.Dropped, s.Failed, s.Clamped))
	}()

	capture, err := openCapture(cfg.Input.Source)
	if err != nil {
		return fmt.Errorf("open input %q: %w", cfg.Input.Source, err)
	}
	defer capture.Close()

	sessionID := agent.StartSession()
	defer agent.EndSession()
	logger.Msg("MAIN", fmt.Sprintf("Tracking faces from %s, link=%s", cfg.Input.Source, cfg.Link.Type), sessionID)

	frames := make(chan gocv.Mat, 1)
	captureErr := make(chan error, 1)
	captureCtx, cancelCapture := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		captureFrames(captureCtx, capture, frames, captureErr)
	}()
	defer func() {
		cancelCapture()
		for m := range frames {
			m.Close()
		}
		wg.Wait()
	}()

	p := &pipeline{agent: agent, link: link, overlay: cfg.Overlay, logger: logger}
	if cfg.Overlay.Terminal {
		p.renderer = overlay.NewRenderer(terminal)
	} else {
		p.renderer = overlay.NewRenderer(nil)
	}
	tel := autopilot.Telemetry{
		IsBellyCamera:     cfg.Input.BellyCamera,
		IsAutonomyEnabled: cfg.Input.Autonomous,
		BatteryPercent:    cfg.Input.BatteryPercent,
	}

	processed := 0
	for {
		select {
		case <-ctx.Done():
			logger.Msg("MAIN", "Shutdown requested")
			return nil
		case err := <-captureErr:
			logger.Msg("MAIN", fmt.Sprintf("Input ended: %v", err))
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			err := p.process(frame, tel)
			frame.Close()
			if err != nil {
				return err
			}
			processed++
			if maxFrames > 0 && processed >= maxFrames {
				logger.Msg("MAIN", fmt.Sprintf("Processed %d frames, stopping", processed))
				return nil
			}
		}
	}
}

// pipeline runs the per-frame work after capture
type pipeline struct {
	agent    *autopilot.Agent
	link     vehicle.Link
	renderer *overlay.Renderer
	overlay  config.OverlayConfig
	logger   *DebugLogger
	now      func() time.Time
}

// process runs one control step and sends the result. Contract violations
// are returned; detector failures skip the frame.
func (p *pipeline) process(frame gocv.Mat, tel autopilot.Telemetry) error {
	res, err := p.agent.ComputeMat(frame, tel)
	switch {
	case errors.Is(err, autopilot.ErrInvalidFrame), errors.Is(err, autopilot.ErrTargetOutOfFrame):
		return fmt.Errorf("autopilot: %w", err)
	case err != nil:
		p.logger.Msg("MAIN", fmt.Sprintf("Skipping frame: %v", err), p.agent.SessionID())
		return nil
	}

	if !p.link.SendCommand(res.Command) {
		p.logger.Verbose("MAIN", fmt.Sprintf("Command %v dropped by link", res.Command))
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	if p.overlay.PreOverlayJpg {
		p.saveJpeg(frame, "pre", res.Invocation, now())
	}
	if p.overlay.Enabled || p.overlay.Terminal || p.overlay.PostOverlayJpg {
		p.renderer.Draw(&frame, res.Observation, res.Command, res.Mode)
	}
	if p.overlay.PostOverlayJpg {
		p.saveJpeg(frame, "post", res.Invocation, now())
	}
	return nil
}

func (p *pipeline) saveJpeg(frame gocv.Mat, prefix string, invocation uint64, at time.Time) {
	if _, err := overlay.SaveJpegFrame(frame, p.overlay.JpgPath, prefix, invocation, at); err != nil {
		p.logger.Msg("JPEG_ERROR", err.Error())
	}
}

// captureFrames reads frames until the input fails or ctx is cancelled.
// The newest frame wins: when the consumer is busy the frame is dropped.
func captureFrames(ctx context.Context, capture *gocv.VideoCapture, frames chan<- gocv.Mat, errc chan<- error) {
	defer close(frames)
	for ctx.Err() == nil {
		img := gocv.NewMat()
		if ok := capture.Read(&img); !ok {
			img.Close()
			errc <- errors.New("failed to read frame")
			return
		}
		if !detection.IsValidFrame(img) {
			img.Close()
			continue
		}

		select {
		case frames <- img:
		default:
			img.Close()
		}
	}
}
