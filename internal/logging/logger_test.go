package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in).Level(); got != want {
			t.Errorf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info")

	logger.Debug("hidden")
	logger.Info("ride accepted", "ride_id", "r1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not a single JSON record: %v (%q)", err, buf.String())
	}
	if record["msg"] != "ride accepted" || record["ride_id"] != "r1" {
		t.Errorf("unexpected record: %v", record)
	}
	if _, ok := record["source"]; !ok {
		t.Error("expected source attribute")
	}
}
