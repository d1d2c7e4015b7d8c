package logbridge

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  int32
		want Level
	}{
		{0, LevelTrace},
		{1, LevelDebug},
		{2, LevelInfo},
		{3, LevelWarning},
		{4, LevelError},
		{5, LevelFatal},
		{6, LevelInfo},
		{99, LevelInfo},
		{-1, LevelInfo},
		{-2147483648, LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.raw); got != tt.want {
			t.Errorf("ParseLevel(%d) = %v, want %v", tt.raw, got, tt.want)
		}
		// pure function
		if ParseLevel(tt.raw) != ParseLevel(tt.raw) {
			t.Errorf("ParseLevel(%d) not deterministic", tt.raw)
		}
	}
}

func TestLevel_ZapLevel(t *testing.T) {
	tests := []struct {
		level Level
		name  string
		zap   zapcore.Level
	}{
		{LevelTrace, "trace", zapcore.DebugLevel},
		{LevelDebug, "debug", zapcore.DebugLevel},
		{LevelInfo, "info", zapcore.InfoLevel},
		{LevelWarning, "warning", zapcore.WarnLevel},
		{LevelError, "error", zapcore.ErrorLevel},
		{LevelFatal, "fatal", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.level.ZapLevel(); got != tt.zap {
				t.Errorf("ZapLevel() = %v, want %v", got, tt.zap)
			}
		})
	}
}
