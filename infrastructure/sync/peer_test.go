package sync

import (
	"errors"
	"testing"
)

type capturingLogger struct {
	warns  []string
	debugs []string
}

func (l *capturingLogger) Printf(format string, v ...any) {
	l.warns = append(l.warns, format)
}

func (l *capturingLogger) Debugf(format string, v ...any) {
	l.debugs = append(l.debugs, format)
}

func TestLogDialFailure_ThrottlesToEveryFifthAttempt(t *testing.T) {
	logger := &capturingLogger{}
	h := &Hub{logger: logger}
	err := errors.New("connection refused")

	for attempt := 1; attempt <= dialWarnEvery*2; attempt++ {
		h.logDialFailure("10.0.0.1:2323", attempt, err)
	}

	if len(logger.warns) != 2 {
		t.Fatalf("Printf calls = %d, want 2 (attempts %d and %d)", len(logger.warns), dialWarnEvery, dialWarnEvery*2)
	}
	if len(logger.debugs) != dialWarnEvery*2-2 {
		t.Fatalf("Debugf calls = %d, want %d", len(logger.debugs), dialWarnEvery*2-2)
	}
}

func TestLogDialFailure_FirstAttemptIsDebugOnly(t *testing.T) {
	logger := &capturingLogger{}
	h := &Hub{logger: logger}

	h.logDialFailure("10.0.0.1:2323", 1, errors.New("timeout"))

	if len(logger.warns) != 0 {
		t.Fatalf("expected no Printf on attempt 1, got %v", logger.warns)
	}
	if len(logger.debugs) != 1 {
		t.Fatalf("expected one Debugf on attempt 1, got %v", logger.debugs)
	}
}
