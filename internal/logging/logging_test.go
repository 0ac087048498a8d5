package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/hmans/taskgraph/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zapcore.Level
		wantErr bool
	}{
		{"default level", config.LogConfig{}, zapcore.InfoLevel, false},
		{"debug development", config.LogConfig{Level: "debug", Development: true}, zapcore.DebugLevel, false},
		{"warn production", config.LogConfig{Level: "warn"}, zapcore.WarnLevel, false},
		{"invalid", config.LogConfig{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && logger.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}
