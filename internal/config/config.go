package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the cron deployment keeps its config file.
const DefaultPath = "config/config.yaml"

// ErrNoProjects is the fatal configuration error: without a project scope
// list there is nothing to run against.
var ErrNoProjects = errors.New("projects list missing or empty")

// Config models config.yaml. Projects is a space-separated list of project
// codes; adding a code there brings the project into the sync scope.
type Config struct {
	Projects string `yaml:"projects"`
	// Server overrides the default Jira base URL.
	Server string `yaml:"server,omitempty"`
}

// ProjectIDs returns the project codes from the space-separated scalar.
func (c *Config) ProjectIDs() []string {
	return strings.Fields(c.Projects)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.ProjectIDs()) == 0 {
		return ErrNoProjects
	}
	return nil
}

// Load reads and validates config from the given path ("" means
// DefaultPath).
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; list project codes under the projects key", path)
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns default config YAML for the given project codes.
func GenerateDefault(projects ...string) string {
	return fmt.Sprintf(defaultTemplate, strings.Join(projects, " "))
}

const defaultTemplate = `# Project codes in scope for status sync, space separated.
projects: %s
`
