// Package events appends one record per completed audit to a rotated log
// file for offline analysis.
package events

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sitescan/engine/internal/common/configtypes"
)

const (
	defaultMaxSize    = 100 // MB
	defaultMaxAge     = 30  // days
	defaultMaxBackups = 10  // files
)

// AuditEvent is one completed audit, as logged.
type AuditEvent struct {
	Time       time.Time
	RequestID  string
	URL        string
	Outcome    string // ok, blocked, timeout, cached, error
	Score      int
	DurationMs int64
	Source     string // audit, cache
}

// Emitter receives completed-audit events. Emit must not block the request
// path on failure.
type Emitter interface {
	Emit(event AuditEvent)
	Close() error
}

// FileEmitter writes tab-separated audit events with rotation support.
type FileEmitter struct {
	writer *lumberjack.Logger
	logger *zap.Logger
}

// NewFileEmitter creates a file-based audit event emitter.
func NewFileEmitter(cfg configtypes.EventLogConfig, logger *zap.Logger) (*FileEmitter, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory %s: %w", dir, err)
	}

	maxSize := cfg.Rotation.MaxSize
	if maxSize == 0 {
		maxSize = defaultMaxSize
	}
	maxAge := cfg.Rotation.MaxAge
	if maxAge == 0 {
		maxAge = defaultMaxAge
	}
	maxBackups := cfg.Rotation.MaxBackups
	if maxBackups == 0 {
		maxBackups = defaultMaxBackups
	}

	return &FileEmitter{
		writer: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSize,
			MaxAge:     maxAge,
			MaxBackups: maxBackups,
			Compress:   cfg.Rotation.Compress,
		},
		logger: logger,
	}, nil
}

func sanitizeField(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// Emit writes one tab-separated line. Write failures are logged, never
// propagated.
func (e *FileEmitter) Emit(event AuditEvent) {
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
		event.Time.UTC().Format(time.RFC3339),
		event.RequestID,
		sanitizeField(event.URL),
		event.Outcome,
		event.Score,
		event.DurationMs,
		event.Source,
	)
	if _, err := e.writer.Write([]byte(line)); err != nil {
		e.logger.Warn("Failed to write audit event", zap.Error(err))
	}
}

// Close flushes and closes the underlying file.
func (e *FileEmitter) Close() error {
	return e.writer.Close()
}
