package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: WarnLevel, Output: &buf})

	logger.Debug("hidden", nil)
	logger.Info("hidden", nil)
	logger.Warn("shown warn", nil)
	logger.Error("shown error", nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-severity entries leaked: %q", out)
	}
	if !strings.Contains(out, "shown warn") || !strings.Contains(out, "shown error") {
		t.Errorf("high-severity entries missing: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	logger.Info("client ready", map[string]interface{}{"command": "gopls"})

	var entry struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "info" || entry.Message != "client ready" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["command"] != "gopls" {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestWithMergesBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	child := logger.With(map[string]interface{}{"component": "client"})
	grandchild := child.With(map[string]interface{}{"command": "gopls"})
	grandchild.Info("started", map[string]interface{}{"pid": 42})

	var entry struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"component", "command", "pid"} {
		if _, ok := entry.Fields[key]; !ok {
			t.Errorf("field %q missing: %v", key, entry.Fields)
		}
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	_ = logger.With(map[string]interface{}{"component": "registry"})
	logger.Info("plain", nil)

	var entry struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("child fields leaked into the parent logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestHumanFormatSortsFieldKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})

	logger.Info("entry", map[string]interface{}{"zebra": 1, "alpha": 2})

	out := buf.String()
	if strings.Index(out, "alpha") > strings.Index(out, "zebra") {
		t.Errorf("field keys not sorted: %q", out)
	}
}
