package logs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Alijeyrad/franchise_backend/pkg/reqctx"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	var debug, warn bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	log := slog.New(h).With("worker", "outbox_relay")

	log.Info("claimed batch")
	log.Warn("event buried")

	if !strings.Contains(debug.String(), "claimed batch") || !strings.Contains(debug.String(), "event buried") {
		t.Errorf("debug handler missed records: %q", debug.String())
	}
	if strings.Contains(warn.String(), "claimed batch") || !strings.Contains(warn.String(), "worker=outbox_relay") {
		t.Errorf("warn handler output wrong: %q", warn.String())
	}
	if h.Enabled(context.Background(), slog.LevelDebug-1) {
		t.Error("enabled below every handler's level")
	}
}

func TestRequestIDHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(&requestIDHandler{Handler: slog.NewTextHandler(&buf, nil)}).With("component", "http")

	ctx := reqctx.WithRequestMeta(context.Background(), &reqctx.RequestMeta{RequestID: "req-42"})
	log.InfoContext(ctx, "settlement approved")
	log.Info("tick")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "request_id=req-42") || !strings.Contains(lines[0], "component=http") {
		t.Errorf("request line missing attrs: %q", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Errorf("background line has a request id: %q", lines[1])
	}
}
