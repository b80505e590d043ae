package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"facepilot/pkg/history"
)

// DebugLogger fans component-tagged messages out to the console, the overlay
// terminal and, in debug mode, one log file per autonomy session.
type DebugLogger struct {
	enabled  bool
	verbose  bool
	baseDir  string
	terminal *history.Buffer

	mu           sync.Mutex
	sessionFiles map[string]*os.File
	writeQueue   chan debugWriteTask
	workerDone   sync.WaitGroup
	closed       bool
}

type debugWriteTask struct {
	file    *os.File
	content string
}

// NewDebugLogger creates the unified logger. File logging is disabled when
// enabled is false or baseDir cannot be created.
func NewDebugLogger(enabled, verbose bool, baseDir string, terminal *history.Buffer) *DebugLogger {
	if enabled {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			log.Printf("[DEBUG_LOGGER] Failed to create debug directory: %v", err)
			enabled = false
		}
	}

	dl := &DebugLogger{
		enabled:      enabled,
		verbose:      verbose,
		baseDir:      baseDir,
		terminal:     terminal,
		sessionFiles: make(map[string]*os.File),
		writeQueue:   make(chan debugWriteTask, 100),
	}
	if enabled {
		dl.workerDone.Add(1)
		go dl.fileWriteWorker()
	}
	return dl
}

// Msg logs a message, tagging it with the session when one is given
func (dl *DebugLogger) Msg(component, message string, sessionID ...string) {
	line := fmt.Sprintf("[%s] %s", component, message)
	log.Println(line)
	if dl.terminal != nil {
		dl.terminal.Add(line)
	}

	if !dl.enabled || len(sessionID) == 0 || sessionID[0] == "" {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.closed {
		return
	}
	file := dl.sessionFile(sessionID[0])
	if file == nil {
		return
	}
	content := fmt.Sprintf("[%s]%s\n", time.Now().Format("15:04:05.000"), line)
	select {
	case dl.writeQueue <- debugWriteTask{file: file, content: content}:
	default:
		// Queue full, drop rather than block the frame loop
	}
}

// Verbose logs only when verbose output is enabled
func (dl *DebugLogger) Verbose(component, message string, sessionID ...string) {
	if !dl.verbose {
		return
	}
	dl.Msg(component, message, sessionID...)
}

// sessionFile returns the log file for a session, creating it on first use.
// Callers hold dl.mu.
func (dl *DebugLogger) sessionFile(sessionID string) *os.File {
	if file, ok := dl.sessionFiles[sessionID]; ok {
		return file
	}

	path := filepath.Join(dl.baseDir, sessionID+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("[DEBUG_LOGGER] Failed to open session log %s: %v", path, err)
		return nil
	}
	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		fmt.Fprintf(file, "=== AUTONOMY SESSION: %s ===\nStarted: %s\n\n", sessionID, time.Now().Format("2006-01-02 15:04:05"))
	}
	dl.sessionFiles[sessionID] = file
	return file
}

func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerDone.Done()
	for task := range dl.writeQueue {
		task.file.WriteString(task.content)
	}
}

// Close flushes queued writes and closes the session files
func (dl *DebugLogger) Close() {
	dl.mu.Lock()
	if dl.closed {
		dl.mu.Unlock()
		return
	}
	dl.closed = true
	close(dl.writeQueue)
	dl.mu.Unlock()

	dl.workerDone.Wait()

	dl.mu.Lock()
	defer dl.mu.Unlock()
	for id, file := range dl.sessionFiles {
		file.Sync()
		file.Close()
		delete(dl.sessionFiles, id)
	}
}
