package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewBootstrapLogger(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, newBootstrapLogger(tt.level).GetLevel())
		})
	}
}

func TestNewBootstrapLogger_LeavesGlobalLevel(t *testing.T) {
	before := zerolog.GlobalLevel()
	_ = newBootstrapLogger("error")
	assert.Equal(t, before, zerolog.GlobalLevel())
}
