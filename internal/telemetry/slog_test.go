package telemetry

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corebase/corebase/internal/config"
)

// resetLogger restores a quiet default so later tests in this binary are not
// spammed by whatever configuration a test installed.
func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetupLogger(config.LoggingConfig{Format: "text", Level: "error"})
	})
}

// logLines reads the file written through the Output target and decodes each
// line as a JSON record.
func logLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("log line is not valid JSON: %v\nline: %s", err, line)
		}
		records = append(records, rec)
	}
	return records
}

func TestSetupLogger_JSONToFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "server.log")

	logger := SetupLogger(config.LoggingConfig{Format: "json", Level: "info", Output: path})
	logger.Info("request handled", "status", 200)

	var found bool
	for _, rec := range logLines(t, path) {
		if rec["msg"] == "request handled" {
			found = true
			if rec["status"] != float64(200) {
				t.Errorf("status attr = %v, want 200", rec["status"])
			}
		}
	}
	if !found {
		t.Error("emitted record not found in the output file")
	}
}

func TestSetupLogger_InstallsDefault(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "server.log")

	SetupLogger(config.LoggingConfig{Format: "json", Level: "info", Output: path})
	slog.Info("via default logger")

	var found bool
	for _, rec := range logLines(t, path) {
		if rec["msg"] == "via default logger" {
			found = true
		}
	}
	if !found {
		t.Error("slog.Default() does not write to the configured target")
	}
}

func TestSetupLogger_LevelFiltersRecords(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "server.log")

	logger := SetupLogger(config.LoggingConfig{Format: "json", Level: "warn", Output: path})
	logger.Info("suppressed record")
	logger.Warn("surviving record")

	for _, rec := range logLines(t, path) {
		if rec["msg"] == "suppressed record" {
			t.Error("info record appeared despite warn level")
		}
	}

	var found bool
	for _, rec := range logLines(t, path) {
		if rec["msg"] == "surviving record" {
			found = true
		}
	}
	if !found {
		t.Error("warn record was suppressed")
	}
}

func TestSetupLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "server.log")

	logger := SetupLogger(config.LoggingConfig{Format: "json", Level: "shouting", Output: path})
	logger.Info("still visible")

	var found bool
	for _, rec := range logLines(t, path) {
		if rec["msg"] == "still visible" {
			found = true
		}
	}
	if !found {
		t.Error("unknown level must fall back to info, not suppress records")
	}
}

func TestSetupLogger_TextFormat(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "server.log")

	logger := SetupLogger(config.LoggingConfig{Format: "text", Level: "info", Output: path})
	logger.Info("text record", "env", "development")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "env=development") {
		t.Errorf("text output missing key=value attrs: %q", string(data))
	}
}

func TestSetupLogger_StandardTargetsDoNotPanic(t *testing.T) {
	resetLogger(t)
	for _, target := range []string{"", "stdout", "stderr"} {
		SetupLogger(config.LoggingConfig{Format: "text", Level: "error", Output: target})
	}
}
