package monitoring

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogf(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op; this must not panic
	SetLogf(nil)
	Logf("test message")
}

func TestSetLoggerRoutesLogf(t *testing.T) {
	original := L()
	defer SetLogger(original)

	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	Logf("frame %s landmark %d", "000012", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if got, want := entries[0].Message, "frame 000012 landmark 3"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestSetLoggerNil(t *testing.T) {
	original := L()
	defer SetLogger(original)

	SetLogger(nil)
	if L() == nil {
		t.Fatal("L() returned nil after SetLogger(nil)")
	}
	L().Info("dropped")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Error("verbose logger should enable debug level")
	}

	l, err = NewLogger(false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Error("default logger should not enable debug level")
	}
}
