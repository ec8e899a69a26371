package training

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger writes run messages to the console as "LEVEL: message" and, when a
// log file is configured, the bare message to that file. The file is opened
// for appending so successive runs accumulate in one log.
type Logger struct {
	console *log.Logger
	file    *log.Logger
	closer  io.Closer
}

// NewLogger creates a logger writing to console and, if path is non-empty,
// appending to path.
func NewLogger(console io.Writer, path string) (*Logger, error) {
	l := &Logger{console: log.New(console, "", 0)}
	if path == "" {
		return l, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = log.New(f, "", 0)
	l.closer = f
	return l, nil
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.output("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.output("WARNING", fmt.Sprintf(format, args...))
}

func (l *Logger) output(level, msg string) {
	l.console.Printf("%s: %s", level, msg)
	if l.file != nil {
		l.file.Print(msg)
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.file = nil
	return err
}
