package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFieldConstructors(t *testing.T) {
	t.Run("Component", func(t *testing.T) {
		f := Component("sampler")
		if f.Key != "component" || f.Value != "sampler" {
			t.Errorf("Component() = %+v", f)
		}
	})

	t.Run("RunID", func(t *testing.T) {
		f := RunID("run-42")
		if f.Key != "run_id" || f.Value != "run-42" {
			t.Errorf("RunID() = %+v", f)
		}
	})

	t.Run("NodeID", func(t *testing.T) {
		f := NodeID(1234567890)
		if f.Key != "node_id" || f.Value != int64(1234567890) {
			t.Errorf("NodeID() = %+v", f)
		}
	})

	t.Run("Latency", func(t *testing.T) {
		f := Latency(5 * time.Second)
		if f.Key != "latency" || f.Value != "5s" {
			t.Errorf("Latency() = %+v", f)
		}
	})

	t.Run("Error", func(t *testing.T) {
		f := Error(errors.New("store gone"))
		if f.Key != "error" || f.Value != "store gone" {
			t.Errorf("Error() = %+v", f)
		}
	})

	t.Run("Error_nil", func(t *testing.T) {
		f := Error(nil)
		if f.Key != "error" || f.Value != nil {
			t.Errorf("Error(nil) = %+v", f)
		}
	})
}

func TestJSONLoggerBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("path persisted", RunID("run-1"), Count(3))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "path persisted" {
		t.Errorf("Message = %v, want 'path persisted'", entry.Message)
	}
	if entry.Fields["run_id"] != "run-1" {
		t.Errorf("Fields[run_id] = %v, want 'run-1'", entry.Fields["run_id"])
	}
	if entry.Time == "" {
		t.Error("Time field is empty")
	}
}

func TestJSONLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(lines))
	}

	var first, second LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Failed to unmarshal first entry: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("Failed to unmarshal second entry: %v", err)
	}
	if first.Level != "WARN" || second.Level != "ERROR" {
		t.Errorf("Levels = %v, %v, want WARN, ERROR", first.Level, second.Level)
	}
}

func TestJSONLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("coverage"), RunID("run-7"))
	child.Info("ratio updated", Float64("ratio", 0.42))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if entry.Fields["component"] != "coverage" {
		t.Errorf("Fields[component] = %v, want 'coverage'", entry.Fields["component"])
	}
	if entry.Fields["run_id"] != "run-7" {
		t.Errorf("Fields[run_id] = %v, want 'run-7'", entry.Fields["run_id"])
	}
	if entry.Fields["ratio"] != 0.42 {
		t.Errorf("Fields[ratio] = %v, want 0.42", entry.Fields["ratio"])
	}

	// Parent stays unaffected by the child's fields.
	buf.Reset()
	logger.Info("parent message")
	var parent LogEntry
	if err := json.Unmarshal(buf.Bytes(), &parent); err != nil {
		t.Fatalf("Failed to unmarshal parent entry: %v", err)
	}
	if _, ok := parent.Fields["component"]; ok {
		t.Error("Parent logger inherited child fields")
	}
}

func TestJSONLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, ErrorLevel)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("Expected no output at ERROR level, got %q", buf.String())
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("kept")
	if buf.Len() == 0 {
		t.Error("Expected output after lowering level")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Debug("ignored")
	logger.Info("ignored")
	logger.Warn("ignored")
	logger.Error("ignored", Error(errors.New("still ignored")))
	if child := logger.With(Component("x")); child == nil {
		t.Error("With() returned nil")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "graph load", NodeID(10))
	timer.End()

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if entry.Message != "graph load" {
		t.Errorf("Message = %v, want 'graph load'", entry.Message)
	}
	if _, ok := entry.Fields["latency"]; !ok {
		t.Error("Missing latency field")
	}
	if entry.Fields["node_id"] != float64(10) {
		t.Errorf("Fields[node_id] = %v, want 10", entry.Fields["node_id"])
	}
}
