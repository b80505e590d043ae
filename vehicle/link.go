package vehicle

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"facepilot/tracking"
)

// Global debug function for vehicle package
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

// Link defines the interface for command transports to the flight controller
type Link interface {
	Start(ctx context.Context) error
	SendCommand(cmd tracking.ControlCommand) bool
	Stop() error
	Stats() Stats
}

// commandQueueSize bounds how many commands may wait for the writer
const commandQueueSize = 4

// EncodeCommand renders cmd as the CSV line "zap,roll,pitch,vertical,yaw\n"
func EncodeCommand(cmd tracking.ControlCommand) string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f,%.4f\n", cmd.Zap, cmd.Roll, cmd.Pitch, cmd.Vertical, cmd.Yaw)
}

// DecodeCommand parses a line produced by EncodeCommand
func DecodeCommand(line string) (tracking.ControlCommand, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 5 {
		return tracking.ControlCommand{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	var vals [5]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return tracking.ControlCommand{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	return tracking.ControlCommand{Zap: vals[0], Roll: vals[1], Pitch: vals[2], Vertical: vals[3], Yaw: vals[4]}, nil
}

// Limits bounds every axis before it reaches the wire
type Limits struct {
	Min float64
	Max float64
}

// DefaultLimits matches the normalized [-1, 1] stick range of the flight controller
var DefaultLimits = Limits{Min: -1, Max: 1}

// Clamp returns cmd with every axis bounded to the limits and whether anything changed
func (l Limits) Clamp(cmd tracking.ControlCommand) (tracking.ControlCommand, bool) {
	out := tracking.ControlCommand{
		Zap:      clamp(cmd.Zap, l.Min, l.Max),
		Roll:     clamp(cmd.Roll, l.Min, l.Max),
		Pitch:    clamp(cmd.Pitch, l.Min, l.Max),
		Vertical: clamp(cmd.Vertical, l.Min, l.Max),
		Yaw:      clamp(cmd.Yaw, l.Min, l.Max),
	}
	return out, out != cmd
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Stats counts what happened to commands handed to a link
type Stats struct {
	Sent    uint64
	Dropped uint64 // Queue full
	Failed  uint64 // Write errors
	Clamped uint64
}

// writerLink queues commands and writes them sequentially to an io.Writer
type writerLink struct {
	name     string
	limits   Limits
	commands chan tracking.ControlCommand

	mu      sync.Mutex
	w       io.WriteCloser
	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
	clamped atomic.Uint64
}

func newWriterLink(name string, limits Limits) *writerLink {
	return &writerLink{
		name:     name,
		limits:   limits,
		commands: make(chan tracking.ControlCommand, commandQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run attaches w and starts the writer goroutine
func (l *writerLink) run(ctx context.Context, w io.WriteCloser) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("%s link already started", l.name)
	}
	l.w = w
	l.started = true
	go l.processCommands(ctx)
	return nil
}

// SendCommand queues a command without blocking. It returns false when the
// queue is full or the link is not running.
func (l *writerLink) SendCommand(cmd tracking.ControlCommand) bool {
	l.mu.Lock()
	running := l.started && !l.stopped
	l.mu.Unlock()
	if !running {
		l.dropped.Add(1)
		return false
	}

	select {
	case l.commands <- cmd:
		return true
	default:
		l.dropped.Add(1)
		return false
	}
}

// processCommands handles the command writing loop
func (l *writerLink) processCommands(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case cmd := <-l.commands:
			l.write(cmd)
		}
	}
}

func (l *writerLink) write(cmd tracking.ControlCommand) {
	limited, changed := l.limits.Clamp(cmd)
	if changed {
		l.clamped.Add(1)
		debugMsg("LINK_WARN", fmt.Sprintf("%s: command clamped to [%.2f, %.2f]: %v", l.name, l.limits.Min, l.limits.Max, cmd))
	}

	if _, err := io.WriteString(l.w, EncodeCommand(limited)); err != nil {
		l.failed.Add(1)
		debugMsg("LINK_WARN", fmt.Sprintf("%s: write failed: %v", l.name, err))
		return
	}
	l.sent.Add(1)
}

// Stop ends the writer goroutine and closes the underlying writer
func (l *writerLink) Stop() error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.stopped = true
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.stop)
	l.mu.Unlock()

	<-l.done
	return l.w.Close()
}

// Stats returns a snapshot of the link counters
func (l *writerLink) Stats() Stats {
	return Stats{
		Sent:    l.sent.Load(),
		Dropped: l.dropped.Load(),
		Failed:  l.failed.Load(),
		Clamped: l.clamped.Load(),
	}
}

// NopLink accepts and discards every command
type NopLink struct {
	sent atomic.Uint64
}

func (n *NopLink) Start(context.Context) error { return nil }
func (n *NopLink) Stop() error                 { return nil }

func (n *NopLink) SendCommand(tracking.ControlCommand) bool {
	n.sent.Add(1)
	return true
}

func (n *NopLink) Stats() Stats {
	return Stats{Sent: n.sent.Load()}
}
