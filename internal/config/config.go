// Package config parses the -interp flag value shared by the CLI binaries
// and reads and writes an optional on-disk defaults file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trkplay/trkplay/engine"
)

// InterpolationFromFlag maps a -interp flag value to an engine.Interpolation.
func InterpolationFromFlag(name string) (engine.Interpolation, error) {
	switch name {
	case "none":
		return engine.InterpolationNone, nil
	case "linear":
		return engine.InterpolationLinear, nil
	case "sinc8":
		return engine.InterpolationSinc8, nil
	case "sinc16":
		return engine.InterpolationSinc16, nil
	case "sinc32":
		return engine.InterpolationSinc32, nil
	default:
		return engine.InterpolationNone, fmt.Errorf("unrecognized interpolation setting %q", name)
	}
}

// Defaults is a small on-disk preferences record (interpolation name and
// output sample rate) read by LoadDefaults and written by Save. The cmd/trk*
// binaries do not load it; they take these settings from -interp and -hz.
type Defaults struct {
	Interpolation string `yaml:"interpolation"`
	SampleRate    int    `yaml:"sample_rate"`
}

// LoadDefaults reads and parses a Defaults file. A missing file is not an
// error; it returns the zero Defaults so callers can layer flag defaults on
// top.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, err
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &d, nil
}

// Save writes d to path as YAML, creating or truncating the file.
func (d *Defaults) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
