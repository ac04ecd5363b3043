// Package logging builds the process loggers. Output goes to stderr by
// default; when a log file is configured it is rotated with lumberjack so a
// long-running tray process cannot fill the disk.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Writer returns the destination for all loggers. An empty logFile selects
// stderr. The returned closer is a no-op for stderr.
func Writer(logFile string) (io.Writer, io.Closer) {
	if logFile == "" {
		return os.Stderr, io.NopCloser(nil)
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return rotator, rotator
}

// New returns a logger with the given bracketed prefix, e.g. "[engine] ".
func New(w io.Writer, prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags)
}
