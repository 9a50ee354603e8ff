package logger

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	zlog "github.com/rs/zerolog/log"

	appCtx "github.com/evgeniivall/notes-auth-micro/internal/pkg/context"
)

var envMu sync.Mutex

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()

	envMu.Lock()
	t.Cleanup(envMu.Unlock)

	// save + set
	prev := map[string]*string{}
	for k, v := range kv {
		if old, ok := os.LookupEnv(k); ok {
			tmp := old
			prev[k] = &tmp
		} else {
			prev[k] = nil
		}
		_ = os.Setenv(k, v)
	}

	t.Cleanup(func() {
		for k, old := range prev {
			if old == nil {
				_ = os.Unsetenv(k)
			} else {
				_ = os.Setenv(k, *old)
			}
		}
	})
}

func TestInitWithWriter_Defaults_ToInfoAndConsole(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "",
		"LOG_FORMAT": "",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	if Logger.GetLevel().String() != "info" {
		t.Fatalf("expected level=info, got %s", Logger.GetLevel().String())
	}
	if zlog.Logger.GetLevel().String() != "info" {
		t.Fatalf("expected global level=info, got %s", zlog.Logger.GetLevel().String())
	}

	Logger.Info().Msg("hello")
	out := buf.String()
	if out == "" {
		t.Fatalf("expected output")
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console output, got json-like: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected message in output, got: %q", out)
	}
}

func TestInitWithWriter_InvalidLogLevel_FallsBackToInfo(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "not-a-level",
		"LOG_FORMAT": "console",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	if Logger.GetLevel().String() != "info" {
		t.Fatalf("expected level=info fallback, got %s", Logger.GetLevel().String())
	}

	Logger.Debug().Msg("debug-should-not-print")
	Logger.Info().Msg("info-should-print")
	out := buf.String()

	if strings.Contains(out, "debug-should-not-print") {
		t.Fatalf("did not expect debug output at info level, got: %q", out)
	}
	if !strings.Contains(out, "info-should-print") {
		t.Fatalf("expected info output, got: %q", out)
	}
}

func TestInitWithWriter_JSONFormat_OutputsJSON(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "json",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	Logger.Info().Str("k", "v").Msg("hello")
	out := strings.TrimSpace(buf.String())

	if out == "" {
		t.Fatalf("expected output")
	}
	if !strings.HasPrefix(out, "{") || !strings.HasSuffix(out, "}") {
		t.Fatalf("expected json object line, got: %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) && !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("expected msg/message field, got: %q", out)
	}
	if !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("expected k field, got: %q", out)
	}
}

func TestInitWithWriter_ConsoleFormat_OutputsNonJSON(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "console",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	Logger.Info().Msg("hello")
	out := strings.TrimSpace(buf.String())

	if out == "" {
		t.Fatalf("expected output")
	}
	if strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got json-like: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected message in output, got: %q", out)
	}
}

func TestInit_SetsGlobalLoggerToo(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "console",
	})

	Init()

	if zlog.Logger.GetLevel().String() != Logger.GetLevel().String() {
		t.Fatalf("expected global logger level to match package logger level; global=%s pkg=%s",
			zlog.Logger.GetLevel().String(), Logger.GetLevel().String())
	}
}

func TestInitWithWriter_Caller_AddsCallerField(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "json",
		"LOG_CALLER": "1",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	Logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"caller":`) {
		t.Fatalf("expected caller field, got: %q", buf.String())
	}
}

func TestWithCtx_AddsRequestID(t *testing.T) {
	withEnv(t, map[string]string{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "json",
		"LOG_CALLER": "",
	})

	var buf bytes.Buffer
	InitWithWriter(&buf)

	ctx := appCtx.WithRequestID(context.Background(), "rid-42")
	WithCtx(ctx).Info().Msg("with id")
	WithCtx(context.Background()).Info().Msg("without id")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"request_id":"rid-42"`) {
		t.Fatalf("expected request_id on first line, got: %q", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Fatalf("did not expect request_id on second line, got: %q", lines[1])
	}
}
