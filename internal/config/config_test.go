package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config  string `help:"Config file path"`
	EnvFile string `help:"Env file path"`

	StringField   string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"INT_FIELD"`
	FloatField    float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`
	SliceField    []string      `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const testTOML = `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 0.75
duration_field = "1m30s"
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"
`

func TestLoadConfigFromTOML(t *testing.T) {
	cfg := &TestConfig{Config: writeFile(t, "config.toml", testTOML)}

	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.StringField != "hello world" {
		t.Errorf("StringField = %q, want 'hello world'", cfg.StringField)
	}
	if !cfg.BoolField {
		t.Errorf("BoolField = %v, want true", cfg.BoolField)
	}
	if cfg.IntField != 42 {
		t.Errorf("IntField = %d, want 42", cfg.IntField)
	}
	if cfg.FloatField != 0.75 {
		t.Errorf("FloatField = %v, want 0.75", cfg.FloatField)
	}
	if cfg.DurationField != 90*time.Second {
		t.Errorf("DurationField = %s, want 1m30s", cfg.DurationField)
	}
	if want := []string{"item1", "item2", "item3"}; !reflect.DeepEqual(cfg.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", cfg.SliceField, want)
	}
	if cfg.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want 'nested value'", cfg.NestedString)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("SUPERPROCESS_STRING_FIELD", "env string")
	t.Setenv("SUPERPROCESS_BOOL_FIELD", "true")
	t.Setenv("SUPERPROCESS_INT_FIELD", "123")
	t.Setenv("SUPERPROCESS_FLOAT_FIELD", "0.5")
	t.Setenv("SUPERPROCESS_DURATION_FIELD", "250ms")
	t.Setenv("SUPERPROCESS_SLICE_FIELD", "a, b,c")

	cfg := &TestConfig{}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.StringField != "env string" || !cfg.BoolField || cfg.IntField != 123 {
		t.Errorf("unexpected basic fields: %+v", cfg)
	}
	if cfg.FloatField != 0.5 {
		t.Errorf("FloatField = %v, want 0.5", cfg.FloatField)
	}
	if cfg.DurationField != 250*time.Millisecond {
		t.Errorf("DurationField = %s, want 250ms", cfg.DurationField)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(cfg.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", cfg.SliceField, want)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	t.Setenv("SUPERPROCESS_STRING_FIELD", "env override")
	t.Setenv("SUPERPROCESS_BOOL_FIELD", "false")

	cfg := &TestConfig{Config: writeFile(t, "config.toml", testTOML)}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.StringField != "env override" {
		t.Errorf("StringField = %q, want env override", cfg.StringField)
	}
	if cfg.BoolField {
		t.Error("BoolField should be overridden to false")
	}
	if cfg.IntField != 42 {
		t.Errorf("IntField = %d, want 42 from TOML", cfg.IntField)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	t.Setenv("SUPERPROCESS_INT_FIELD", "7")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("int-field", 0, "")
	cmd.Flags().String("string-field", "", "")
	if err := cmd.Flags().Set("int-field", "99"); err != nil {
		t.Fatal(err)
	}

	cfg := &TestConfig{Config: writeFile(t, "config.toml", testTOML), IntField: 99}
	if err := LoadConfig(cfg, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.IntField != 99 {
		t.Errorf("IntField = %d, want CLI value 99", cfg.IntField)
	}
	if cfg.StringField != "hello world" {
		t.Errorf("StringField = %q, want TOML value for unchanged flag", cfg.StringField)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "SUPERPROCESS_STRING_FIELD=from dotenv\nSUPERPROCESS_INT_FIELD=5\n")
	t.Setenv("SUPERPROCESS_INT_FIELD", "8")
	t.Cleanup(func() { os.Unsetenv("SUPERPROCESS_STRING_FIELD") })

	cfg := &TestConfig{EnvFile: envFile}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.StringField != "from dotenv" {
		t.Errorf("StringField = %q, want value from .env", cfg.StringField)
	}
	if cfg.IntField != 8 {
		t.Errorf("IntField = %d, want existing env value 8", cfg.IntField)
	}
}

func TestLoadConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &TestConfig{
		Config:      filepath.Join(dir, "missing.toml"),
		EnvFile:     filepath.Join(dir, "missing.env"),
		StringField: "default",
	}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig should tolerate missing files: %v", err)
	}
	if cfg.StringField != "default" {
		t.Errorf("StringField = %q, want default", cfg.StringField)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if err := LoadConfig(TestConfig{}, nil); err == nil {
		t.Error("expected error for non-pointer opts")
	}

	cfg := &TestConfig{Config: writeFile(t, "bad.toml", "[test\nbroken")}
	if err := LoadConfig(cfg, nil); err == nil {
		t.Error("expected error for invalid TOML")
	}

	cfg = &TestConfig{Config: writeFile(t, "wrong.toml", "[test]\nint_field = \"many\"\n")}
	if err := LoadConfig(cfg, nil); err == nil {
		t.Error("expected error for mistyped TOML value")
	}

	t.Setenv("SUPERPROCESS_DURATION_FIELD", "soon")
	if err := LoadConfig(&TestConfig{}, nil); err == nil {
		t.Error("expected error for invalid duration env")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{"value": "nested_value"},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"missing", nil},
		{"root.child", nil},
		{"level1.missing.value", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"LoggingLevel":   "logging-level",
		"JobsFile":       "jobs-file",
		"MetricsEnabled": "metrics-enabled",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, "config.toml", `
[logging]
level = "debug"
format = "json"
buffer_size = 50

[logging.modules]
supervisor = "warn"
api = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" || cfg.BufferSize != 50 {
		t.Errorf("unexpected logging config: %+v", cfg)
	}
	if cfg.Modules["supervisor"] != "warn" || cfg.Modules["api"] != "error" {
		t.Errorf("unexpected module levels: %v", cfg.Modules)
	}

	t.Setenv("SUPERPROCESS_LOGGING_LEVEL", "error")
	if cfg := LoadLoggingConfig(path); cfg.Level != "error" {
		t.Errorf("expected env override, got %q", cfg.Level)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.toml")} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || cfg.Modules == nil {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}
