package jobs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smazurov/superprocess/internal/process"
)

// ErrInvalidJob is wrapped by every job validation error.
var ErrInvalidJob = errors.New("invalid job")

// Kind selects how a job's process function is built.
type Kind string

const (
	// KindCommand runs a command line on every attempt.
	KindCommand Kind = "command"
	// KindUnit checks that a systemd unit is active on every attempt.
	KindUnit Kind = "unit"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// JobSpec is one entry of the jobs file. Unset optional fields fall back to
// the process package defaults.
type JobSpec struct {
	// Name is the key of the job in the file.
	Name string `toml:"-" yaml:"-" json:"name"`

	// Kind defaults to "unit" when Unit is set and "command" otherwise.
	Kind Kind `toml:"kind,omitempty" yaml:"kind,omitempty" json:"kind"`

	Command string   `toml:"command,omitempty" yaml:"command,omitempty" json:"command,omitempty"`
	Unit    string   `toml:"unit,omitempty" yaml:"unit,omitempty" json:"unit,omitempty"`
	Timeout Duration `toml:"timeout,omitempty" yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Interval    Duration  `toml:"interval,omitempty" yaml:"interval,omitempty" json:"interval,omitempty"`
	MaxRetries  *int      `toml:"max_retries,omitempty" yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	BaseBackoff *Duration `toml:"base_backoff,omitempty" yaml:"base_backoff,omitempty" json:"base_backoff,omitempty"`
	MaxBackoff  Duration  `toml:"max_backoff,omitempty" yaml:"max_backoff,omitempty" json:"max_backoff,omitempty"`

	AutoOptimize          *bool    `toml:"auto_optimize,omitempty" yaml:"auto_optimize,omitempty" json:"auto_optimize,omitempty"`
	OptimizationThreshold *float64 `toml:"optimization_threshold,omitempty" yaml:"optimization_threshold,omitempty" json:"optimization_threshold,omitempty"`
	MinSampleSize         *uint64  `toml:"min_sample_size,omitempty" yaml:"min_sample_size,omitempty" json:"min_sample_size,omitempty"`

	// Enabled jobs start in continuous mode. Defaults to true.
	Enabled *bool `toml:"enabled,omitempty" yaml:"enabled,omitempty" json:"enabled,omitempty"`

	Metadata map[string]string `toml:"metadata,omitempty" yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// EffectiveKind returns Kind, or the kind implied by the populated fields.
func (j JobSpec) EffectiveKind() Kind {
	switch {
	case j.Kind != "":
		return j.Kind
	case j.Unit != "":
		return KindUnit
	default:
		return KindCommand
	}
}

// IsEnabled reports whether the job should run continuously.
func (j JobSpec) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Equal reports whether two specs would build identical processes.
func (j JobSpec) Equal(other JobSpec) bool {
	return reflect.DeepEqual(j, other)
}

// ProcessConfig builds the process config for fn.
func (j JobSpec) ProcessConfig(fn process.Func) process.Config {
	cfg := process.DefaultConfig(j.Name, fn)
	if j.Interval > 0 {
		cfg.Interval = time.Duration(j.Interval)
	}
	if j.MaxRetries != nil {
		cfg.MaxRetries = *j.MaxRetries
	}
	if j.BaseBackoff != nil {
		cfg.BaseBackoff = time.Duration(*j.BaseBackoff)
	}
	cfg.MaxBackoff = time.Duration(j.MaxBackoff)
	if j.AutoOptimize != nil {
		cfg.AutoOptimize = *j.AutoOptimize
	}
	if j.OptimizationThreshold != nil {
		cfg.OptimizationThreshold = *j.OptimizationThreshold
	}
	if j.MinSampleSize != nil {
		cfg.MinSampleSize = *j.MinSampleSize
	}
	return cfg
}

// Validate reports every problem with the job at once.
func (j JobSpec) Validate() error {
	var errs []error
	if !namePattern.MatchString(j.Name) {
		errs = append(errs, fmt.Errorf("name must match %s", namePattern))
	}

	switch j.EffectiveKind() {
	case KindCommand:
		if strings.TrimSpace(j.Command) == "" {
			errs = append(errs, errors.New("command is required"))
		} else if _, err := process.NewCommandFunc(j.Command, 0); err != nil {
			errs = append(errs, err)
		}
	case KindUnit:
		if j.Unit == "" {
			errs = append(errs, errors.New("unit is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", j.Kind))
	}

	if j.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be >= 0"))
	}
	if j.Interval < 0 {
		errs = append(errs, errors.New("interval must be >= 0"))
	}

	placeholder := process.FuncOf(func(context.Context) (any, error) { return nil, nil })
	if err := j.ProcessConfig(placeholder).Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidJob, j.Name, errors.Join(errs...))
}
