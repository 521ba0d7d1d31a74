package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetState clears global logging state and captures console output.
func resetState(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer

	mutex.Lock()
	prevOutput := output
	output = &buf
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logCallback = nil
	logBuffer = NewRingBuffer(defaultBufferSize)
	mutex.Unlock()

	t.Cleanup(func() {
		mutex.Lock()
		output = prevOutput
		logCallback = nil
		mutex.Unlock()
	})
	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)
	Initialize(Config{
		Level:  "info",
		Format: FormatText,
		Modules: map[string]string{
			"supervisor": "debug",
			"api":        "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"supervisor", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestConsoleOutput(t *testing.T) {
	buf := resetState(t)
	Initialize(Config{Level: "debug", Format: FormatText})

	GetLogger("process").Debug("state changed", "process", "backup", "to", "running")

	out := buf.String()
	if !strings.Contains(out, "state changed") || !strings.Contains(out, "module=process") {
		t.Errorf("expected text output with module, got %q", out)
	}
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("expected plain text handler for non-terminal output, got %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	buf := resetState(t)
	Initialize(Config{Level: "info", Format: FormatJSON})

	GetLogger("api").Info("listening", "addr", ":8090")

	out := buf.String()
	if !strings.Contains(out, `"msg":"listening"`) || !strings.Contains(out, `"module":"api"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	before := GetLogger("supervisor")
	handler := before.Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"supervisor": "debug"}})

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("early logger should follow the module level set by Initialize")
	}
	if !GetLogger("supervisor").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("rebuilt logger should have debug enabled")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("events")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled initially")
	}
	if !SetModuleLevel("events", "debug") {
		t.Fatal("SetModuleLevel returned false")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled after SetModuleLevel")
	}
	if SetModuleLevel("events", "loud") {
		t.Error("expected invalid level to be rejected")
	}
}

func TestBufferAndCallback(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info", BufferSize: 3})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) { got = append(got, entry) })

	logger := GetLogger("supervisor")
	for i := range 5 {
		logger.Info("tick", "n", i)
	}
	logger.Debug("hidden")

	if len(got) != 5 {
		t.Fatalf("expected 5 callback entries, got %d", len(got))
	}
	entries := GetBuffer().ReadAll()
	if len(entries) != 3 {
		t.Fatalf("expected buffer to keep 3 entries, got %d", len(entries))
	}
	if entries[0].Attributes["n"] != int64(2) || entries[2].Attributes["n"] != int64(4) {
		t.Errorf("expected oldest-first entries 2..4, got %+v", entries)
	}
	if entries[0].Module != "supervisor" || entries[0].Level != "info" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestBufferHandlerFlattensAttrs(t *testing.T) {
	rb := NewRingBuffer(10)
	h := NewBufferHandler(rb, slog.LevelDebug, nil)
	logger := slog.New(h).With("module", "process").WithGroup("job")

	logger.Info("done",
		"name", "backup",
		"took", 1500*time.Millisecond,
		"error", errors.New("exit 1"),
		slog.Group("params", "retries", 3),
	)

	entries := rb.ReadAll()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "process" {
		t.Errorf("expected module process, got %q", e.Module)
	}
	want := map[string]any{
		"job.name":           "backup",
		"job.took":           "1.5s",
		"job.error":          "exit 1",
		"job.params.retries": int64(3),
	}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("attribute %s = %v, want %v", k, e.Attributes[k], v)
		}
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer
	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both")

	out := buf.String()
	if n := strings.Count(out, "debug only message"); n != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", n, out)
	}
	if n := strings.Count(out, "both"); n != 2 {
		t.Errorf("expected 2 info messages, got %d. Output: %s", n, out)
	}
}

func TestRingBufferSelect(t *testing.T) {
	rb := NewRingBuffer(4)
	for _, e := range []LogEntry{
		{Module: "api", Level: "info", Message: "a"},
		{Module: "process", Level: "debug", Message: "b"},
		{Module: "process", Level: "warn", Message: "c"},
		{Module: "api", Level: "error", Message: "d"},
		{Module: "process", Level: "info", Message: "e"},
	} {
		rb.Write(e)
	}

	if rb.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", rb.Count())
	}
	if all := rb.ReadAll(); len(all) != 4 || all[0].Message != "b" || all[3].Message != "e" {
		t.Errorf("ReadAll() = %+v", all)
	}

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"limit", Query{Limit: 2}, "de"},
		{"module", Query{Module: "process"}, "bce"},
		{"min level", Query{MinLevel: "warn"}, "cd"},
		{"combined", Query{Module: "process", MinLevel: "info", Limit: 1}, "e"},
		{"no match", Query{Module: "jobs"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			for _, e := range rb.Select(tt.query) {
				got += e.Message
			}
			if got != tt.want {
				t.Errorf("Select(%+v) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "warn",
		Module:     "process",
		Message:    "Retrying",
		Attributes: map[string]any{"retry": 2, "delay": "200ms"},
	}
	want := "2026-01-02T03:04:05Z [WARN] [process] Retrying delay=200ms retry=2"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := map[string]string{
		"process":      "PROCESS",
		"job.name":     "JOB_NAME",
		"success-rate": "SUCCESS_RATE",
		"_private":     "PRIVATE",
		"1st":          "ST",
	}
	for in, want := range tests {
		if got := journalFieldName(in); got != want {
			t.Errorf("journalFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestJournalFields(t *testing.T) {
	h := NewJournalHandler(slog.LevelDebug).WithAttrs([]slog.Attr{slog.String("module", "supervisor")}).(*JournalHandler)
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "Retrying", 0)
	r.AddAttrs(
		slog.String("process", "backup"),
		slog.Int("retry", 2),
		slog.Duration("delay", 200*time.Millisecond),
	)

	got := h.fields(r, mapLevelToPriority(r.Level))
	want := map[string]string{
		"PRIORITY":             "4",
		"SYSLOG_IDENTIFIER":    SyslogIdentifier,
		"SUPERPROCESS_MODULE":  "supervisor",
		"SUPERPROCESS_PROCESS": "backup",
		"RETRY":                "2",
		"DELAY":                "200ms",
	}
	if len(got) != len(want) {
		t.Errorf("fields = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestQuietKeepsBuffer(t *testing.T) {
	out := resetState(t)
	Initialize(Config{Level: "info", Quiet: true})

	GetLogger("exec").Info("not on console", "process", "greet")

	if out.Len() != 0 {
		t.Errorf("expected no console output, got %q", out.String())
	}
	entries := GetBuffer().Select(Query{Module: "exec"})
	if len(entries) != 1 || entries[0].Attributes["process"] != "greet" {
		t.Errorf("expected entry in buffer, got %+v", entries)
	}
}
