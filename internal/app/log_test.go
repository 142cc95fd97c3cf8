package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogHandler(t *testing.T) {
	t.Run("writes tab-separated records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(&logHandler{w: &buf, opID: "20260301T090000Z-Link"})

		logger.Info("linked", "path", "/home/u/.tmux.conf")

		line := strings.TrimSuffix(buf.String(), "\n")
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			t.Fatalf("got %d fields, want 5: %q", len(fields), line)
		}
		if fields[1] != "INFO" {
			t.Errorf("level = %q", fields[1])
		}
		if fields[2] != "20260301T090000Z-Link" {
			t.Errorf("opID = %q", fields[2])
		}
		if fields[3] != "linked" {
			t.Errorf("message = %q", fields[3])
		}
		if fields[4] != "path=/home/u/.tmux.conf" {
			t.Errorf("attr = %q", fields[4])
		}
	})

	t.Run("WithAttrs prefixes bound attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(&logHandler{w: &buf, opID: "op"})

		logger.With("code", "misty-harbor-0001").Info("retrieved", "size", 42)

		line := buf.String()
		if !strings.Contains(line, "\tcode=misty-harbor-0001\t") {
			t.Errorf("bound attr missing: %q", line)
		}
		if !strings.Contains(line, "\tsize=42") {
			t.Errorf("record attr missing: %q", line)
		}
	})
}
