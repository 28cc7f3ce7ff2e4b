package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Error("Init() should reject an unknown level")
	}
}

func TestInit_ValidLevels(t *testing.T) {
	defer Set(zap.NewNop())
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		if err := Init(Options{Level: level, Console: level == "debug"}); err != nil {
			t.Errorf("Init(%q) error = %v", level, err)
		}
	}
}

func TestNamed_UsesGlobalCore(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(zap.NewNop())

	Named("extract").Info("stage complete", zap.String("stage", "formatting"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "extract" {
		t.Errorf("LoggerName = %q, want extract", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["stage"] != "formatting" {
		t.Errorf("stage field = %v", entries[0].ContextMap()["stage"])
	}
}
