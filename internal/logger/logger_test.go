package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eli.log")
	log, closer, _ := Build(Config{Level: "info", Path: path, MaxSizeMB: 1})

	log.Info("hello from test", "key", "value")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing message; got:\n%s", data)
	}
}

func TestBuildLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eli.log")
	log, closer, _ := Build(Config{Level: "error", Path: path, MaxSizeMB: 1})

	log.Info("should be filtered")
	log.Error("should appear")
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "should be filtered") {
		t.Error("info record written despite error level")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Error("error record missing")
	}
}

func TestBuildLevelVarAdjusts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eli.log")
	log, closer, level := Build(Config{Level: "error", Path: path, MaxSizeMB: 1})

	log.Info("before raise")
	level.Set(slog.LevelInfo)
	log.Info("after raise")
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "before raise") {
		t.Error("info record written despite error level")
	}
	if !strings.Contains(string(data), "after raise") {
		t.Error("info record missing after level change")
	}
}

func TestBuildStderrFallback(t *testing.T) {
	log, closer, _ := Build(Default())
	if log == nil {
		t.Fatal("Build() returned nil logger")
	}
	// Closing the stderr-backed logger must not close stderr.
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
