package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "invalid-level", Format: FormatJSON}, "test", &buf)
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected info level, got %q", buf.String())
	}
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatJSON}, "svc", &buf)

	l.WithComponent("supervisor").Error("Service error", Fields(FieldService, "alert", FieldError, "boom"))

	entry := decode(t, &buf)
	if entry["message"] != "Service error" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry[FieldComponent] != "supervisor" {
		t.Errorf("expected component=supervisor, got %v", entry[FieldComponent])
	}
	if entry[FieldService] != "alert" {
		t.Errorf("expected field service=alert to override logger tag, got %v", entry[FieldService])
	}
	if entry["level"] != "error" {
		t.Errorf("expected level=error, got %v", entry["level"])
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", Format: FormatJSON}, "svc", &buf)

	l.Info("dropped")
	l.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn message should be written")
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "ingest", &buf)
	l.Info("started", Fields("slot", 1))

	out := buf.String()
	for _, want := range []string{"[ING][INF]", "started", "slot:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q: %q", want, out)
		}
	}
}

func TestDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&Config{Level: "info", Format: FormatJSON}, "svc", &buf)

	l := base.WithComponent("alert").
		WithFields(map[string]interface{}{"slot_id": "abc"}).
		WithError(errString("boom"))
	if l.service != "svc" {
		t.Errorf("service should be preserved, got %q", l.service)
	}
	l.Info("forwarded")

	entry := decode(t, &buf)
	if entry[FieldComponent] != "alert" || entry["slot_id"] != "abc" || entry[FieldError] != "boom" {
		t.Errorf("derived fields missing: %v", entry)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestNop(t *testing.T) {
	Nop().Error("nothing")
}

func TestInit(t *testing.T) {
	defer SetGlobalLogger(nil)
	Init(&Config{Level: "info", Format: FormatJSON, ServiceName: "warden"})
	if gl := GetGlobalLogger(); gl.service != "warden" {
		t.Errorf("expected service 'warden', got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	SetGlobalLogger(nil)
	if l := GetGlobalLogger(); l == nil || l.service != "default" {
		t.Fatalf("expected default global logger, got %+v", l)
	}
}

func TestRegistry(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&Config{Level: "info", Format: FormatJSON}, "pkg", &buf))
	defer SetGlobalLogger(nil)

	pinned := Nop()
	Register("pinned", pinned)
	defer Register("pinned", nil)
	if Get("pinned") != pinned {
		t.Error("expected registered logger")
	}

	Get("httpclient").Warn("fallback")
	if entry := decode(t, &buf); entry[FieldComponent] != "httpclient" {
		t.Errorf("expected component-tagged fallback, got %v", entry)
	}

	Register("pinned", nil)
	if Get("pinned") == pinned {
		t.Error("expected nil to unregister")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&Config{Level: "debug", Format: FormatJSON}, "pkg", &buf))
	defer SetGlobalLogger(nil)

	Info("info msg")
	Warn("warn msg")
	Error("error msg")
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, 2, "ignored", "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("unexpected fields %v", f)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLevelTag(t *testing.T) {
	if got := levelTag("INFO", true); got != "[INF]" {
		t.Errorf("expected [INF], got %q", got)
	}
	if got := levelTag("CUSTOM", true); got != "[CUSTOM]" {
		t.Errorf("expected [CUSTOM], got %q", got)
	}
}
