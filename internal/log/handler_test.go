package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	ctxlog "github.com/ErlanBelekov/storefront/internal/log"
	"github.com/ErlanBelekov/storefront/internal/requestid"
)

func TestContextHandler_AddsRequestAndUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := requestid.WithRequestID(context.Background(), "req-1")
	ctx = ctxlog.WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"user_id":"user-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestContextHandler_EmptyContextAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With("component", "test").InfoContext(context.Background(), "hello")

	out := buf.String()
	if strings.Contains(out, "request_id") || strings.Contains(out, "user_id") {
		t.Errorf("unexpected context attrs in %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("WithAttrs lost: %s", out)
	}
}
