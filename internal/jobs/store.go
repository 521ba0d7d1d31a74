// Package jobs loads and validates the jobs file that describes which
// processes the supervisor runs.
package jobs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the jobs file format version.
const CurrentVersion = 1

// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported jobs file format")

// Format is a jobs file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// File is the complete jobs file.
type File struct {
	Version int                `toml:"version" yaml:"version" json:"version"`
	Jobs    map[string]JobSpec `toml:"jobs" yaml:"jobs" json:"jobs"`
}

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads, parses and validates a jobs file. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates jobs file content. Unknown keys are rejected.
func Parse(data []byte, format Format) (*File, error) {
	f := &File{}
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse jobs file: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse jobs file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) normalize() {
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	if f.Jobs == nil {
		f.Jobs = make(map[string]JobSpec)
	}
	for name, job := range f.Jobs {
		job.Name = name
		job.Kind = job.EffectiveKind()
		f.Jobs[name] = job
	}
}

// Validate checks the version and every job, joining all errors.
func (f *File) Validate() error {
	var errs []error
	if f.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported jobs file version %d", f.Version))
	}
	for _, name := range f.Names() {
		if err := f.Jobs[name].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns the job names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Jobs))
	for name := range f.Jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the named job.
func (f *File) Get(name string) (JobSpec, bool) {
	job, ok := f.Jobs[name]
	return job, ok
}
