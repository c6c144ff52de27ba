package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
		hidden *slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, nil},
		{"warn level", "warn", slog.LevelWarn, levelPtr(slog.LevelInfo)},
		{"warning alias", "WARNING", slog.LevelWarn, levelPtr(slog.LevelInfo)},
		{"error level", "error", slog.LevelError, levelPtr(slog.LevelWarn)},
		{"default info", "", slog.LevelInfo, levelPtr(slog.LevelDebug)},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
			if tt.hidden != nil && logger.Enabled(ctx, *tt.hidden) {
				t.Fatalf("expected level %s to be disabled", *tt.hidden)
			}
		})
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("branch_id", "b-1")
	logger.Info("appointment created", "clinic_number", 2)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "appointment created" {
		t.Errorf("unexpected msg %v", line["msg"])
	}
	if line["branch_id"] != "b-1" {
		t.Errorf("expected inherited branch_id, got %v", line["branch_id"])
	}
	if line["clinic_number"] != float64(2) {
		t.Errorf("expected clinic_number 2, got %v", line["clinic_number"])
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger.Logger == nil {
		t.Fatal("Default() returned Logger with nil slog.Logger")
	}
	if Default() == logger {
		t.Error("Default() returned the same instance twice")
	}
}

func levelPtr(l slog.Level) *slog.Level { return &l }
