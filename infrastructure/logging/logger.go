// Package logging implements application.Logger over the standard log
// package, the way the teacher's infrastructure/logging does, extended to
// fan out to the multiple targets the -L flag accepts (spec §6) and to
// widen the log line format when -U (debug) is set.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"anytun/application"
)

// LogLogger wraps a standard library *log.Logger.
type LogLogger struct {
	l     *log.Logger
	debug bool
}

// NewLogLogger returns a Logger writing to stdout with the teacher's
// default flags, for callers that don't need target/debug configuration.
func NewLogLogger() application.Logger {
	return &LogLogger{l: log.New(os.Stdout, "", log.LstdFlags)}
}

// New builds a Logger fanning out to every target named in targets (spec §6
// -L). Recognized targets: "stdout", "stderr", "file:<path>", and (unix
// only) "syslog". An empty targets list defaults to stdout. debug widens
// the log line with file:line (spec §6 -U).
func New(targets []string, debug bool) (application.Logger, error) {
	if len(targets) == 0 {
		targets = []string{"stdout"}
	}

	writers := make([]io.Writer, 0, len(targets))
	for _, t := range targets {
		w, err := openTarget(t)
		if err != nil {
			return nil, fmt.Errorf("logging: target %q: %w", t, err)
		}
		writers = append(writers, w)
	}

	flags := log.LstdFlags
	if debug {
		flags |= log.Lmicroseconds | log.Lshortfile
	}

	var w io.Writer
	if len(writers) == 1 {
		w = writers[0]
	} else {
		w = io.MultiWriter(writers...)
	}

	return &LogLogger{l: log.New(w, "", flags), debug: debug}, nil
}

func openTarget(target string) (io.Writer, error) {
	switch {
	case target == "stdout":
		return os.Stdout, nil
	case target == "stderr":
		return os.Stderr, nil
	case target == "syslog":
		return openSyslog()
	case strings.HasPrefix(target, "file:"):
		path := strings.TrimPrefix(target, "file:")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown log target")
	}
}

// Printf implements application.Logger.
func (l *LogLogger) Printf(format string, v ...any) {
	l.l.Printf(format, v...)
}

// Debugf implements application.Logger. It logs only when the logger was
// built with debug enabled, for chatter that would otherwise flood
// production logs.
func (l *LogLogger) Debugf(format string, v ...any) {
	if !l.debug {
		return
	}
	l.l.Printf("debug: "+format, v...)
}
