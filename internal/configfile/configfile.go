// Package configfile defines the on-disk buildcore.yaml schema and loads it
// with gopkg.in/yaml.v3, the way the teacher's internal/configfile parses
// its own project metadata file.
package configfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the default project configuration file name.
const FileName = "buildcore.yaml"

// File is the parsed shape of buildcore.yaml (spec.md §5, §6).
type File struct {
	Worker struct {
		MaxCPUCount int `yaml:"max_cpu_count,omitempty"`
	} `yaml:"worker,omitempty"`

	Cache struct {
		Root string `yaml:"root,omitempty"`
	} `yaml:"cache,omitempty"`

	Dotnet struct {
		PropagateRoot bool `yaml:"propagate_root,omitempty"`
	} `yaml:"dotnet,omitempty"`

	Nodes struct {
		Endpoints []string `yaml:"endpoints,omitempty,flow"`
	} `yaml:"nodes,omitempty"`

	Storage struct {
		Backend string `yaml:"backend,omitempty"` // "memory", "mysql", "dolt"
		DSN     string `yaml:"dsn,omitempty"`
	} `yaml:"storage,omitempty"`
}

// Default returns a File populated with the built-in defaults (spec.md §5).
func Default() *File {
	f := &File{}
	f.Storage.Backend = "memory"
	return f
}

// Load reads and parses path. A missing file is not an error: callers fall
// back to Default, matching the teacher's Load(beadsDir) nil-on-not-exist
// convention.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied, same trust boundary as the teacher's configfile.Load
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// Save writes f to path as YAML.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config file, not a secret
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
