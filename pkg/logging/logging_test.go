package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"WARN", zap.WarnLevel},
		{"fatal", zap.InfoLevel},
		{"verbose", zap.InfoLevel},
		{"", zap.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatText, "console", ""} {
		t.Run(format, func(t *testing.T) {
			logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: format})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if logger.Core().Enabled(zap.InfoLevel) {
				t.Error("info should be disabled at warn level")
			}
			if !logger.Core().Enabled(zap.WarnLevel) {
				t.Error("warn should be enabled at warn level")
			}
		})
	}
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	if _, err := NewLogger(config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
