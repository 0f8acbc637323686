package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		verbose  bool
		override string
		want     zapcore.Level
	}{
		{false, "", zapcore.WarnLevel},
		{true, "", zapcore.InfoLevel},
		{true, "debug", zapcore.DebugLevel},
		{false, "error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		l, err := New(tt.verbose, tt.override)
		if err != nil {
			t.Fatalf("New(%v, %q): %v", tt.verbose, tt.override, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("New(%v, %q): level %s not enabled", tt.verbose, tt.override, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("New(%v, %q): level below %s enabled", tt.verbose, tt.override, tt.want)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(false, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext should fall back to a nop logger")
	}
	l := zap.NewExample()
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not carried by context")
	}
}
