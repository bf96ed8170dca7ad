package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewAppliesLevelOverride(t *testing.T) {
	log, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn should be enabled")
	}
}

func TestNewIgnoresUnknownLevel(t *testing.T) {
	log, err := New("development", "loud")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("development logger should keep debug enabled")
	}
}
