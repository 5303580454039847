package infrastructure_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/infrastructure"
)

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := infrastructure.NewLogger(&config.LoggingConfig{Level: "info", Format: "json"}, &buf)
		logger.Info("job finished", "task_id", "abc")

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("output is not json: %v: %s", err, buf.String())
		}
		if rec["msg"] != "job finished" || rec["task_id"] != "abc" {
			t.Errorf("unexpected record: %v", rec)
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := infrastructure.NewLogger(&config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Errorf("info record written at warn level: %s", out)
		}
		if !strings.Contains(out, "msg=kept") {
			t.Errorf("warn record missing: %s", out)
		}
	})
}
