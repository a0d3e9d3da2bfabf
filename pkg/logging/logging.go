package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

/*
Configure sets up the default charmbracelet logger. Level is one of debug,
info, warn or error. Format is text, json or logfmt. When path is set, log
lines are appended to that file as well as written to stderr.
*/
func Configure(level, format, path string) error {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))

	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	formatter, err := parseFormatter(format)

	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if path != "" {
		if logFile, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err != nil {
			return fmt.Errorf("logging: failed to open log file %s: %w", path, err)
		}

		out = io.MultiWriter(os.Stderr, logFile)
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		ReportCaller:    lvl == log.DebugLevel,
	})

	log.SetDefault(logger)
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func parseFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}

	return log.TextFormatter, fmt.Errorf("logging: unknown format %q", format)
}
