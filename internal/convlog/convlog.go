// Package convlog writes an append-only NDJSON audit trail of chat turns.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const defaultQueueSize = 256

// Config controls the conversation log.
type Config struct {
	Enabled bool
	Dir     string
	// GlobalFile, when set, also receives every event.
	GlobalFile string
	QueueSize  int
}

// Event is one logged chat event.
type Event struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id,omitempty"`
	Channel   string    `json:"channel"`
	Direction string    `json:"direction"`
	EventType string    `json:"event_type"`
	Step      string    `json:"step,omitempty"`
	Source    string    `json:"source,omitempty"`
	Content   string    `json:"content"`
}

// Logger queues events and writes them from a single goroutine.
// A nil *Logger discards everything.
type Logger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// New creates a Logger. It returns nil, nil when logging is disabled.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Logger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues e without blocking. Events are dropped when the queue is full.
func (l *Logger) Log(e Event) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"session_id", e.SessionID,
			"event_type", e.EventType)
	}
}

// Close drains the queue and stops the writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Warn("failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := appendLine(filepath.Join(l.cfg.Dir, safeName(e.SessionID)+".ndjson"), line); err != nil {
			l.logger.Warn("failed to write conversation event",
				"session_id", e.SessionID,
				"error", err)
		}
		if l.cfg.GlobalFile != "" {
			if err := appendLine(l.cfg.GlobalFile, line); err != nil {
				l.logger.Warn("failed to write global conversation event", "error", err)
			}
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// safeName keeps session ids from escaping the log directory.
func safeName(id string) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(id, "_"), "_")
	if name == "" {
		return "anonymous"
	}
	return name
}
