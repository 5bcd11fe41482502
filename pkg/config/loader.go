package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GlobalConfigDir is the directory under the user config dir.
const GlobalConfigDir = "posgraph"

// LocalConfigFileNames are the names searched in the working directory (in order).
var LocalConfigFileNames = []string{".posgraph.yaml", ".posgraph.yml"}

// GlobalConfigFileNames are the names searched in the global directory (in order).
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// ConfigError is a configuration file error with location info.
type ConfigError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, column %d): %s", e.Path, e.Line, e.Column, e.Message)
	}
	return e.Path + ": " + e.Message
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// LoadConfigFile loads a Config from a YAML file. The result holds only the
// values present in the file; SetFields lists their keys.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(path, data)
}

// ParseConfig parses YAML config data. path is used in error messages.
func ParseConfig(path string, data []byte) (*Config, error) {
	cfg := &Config{
		Sources:   make(map[string]string),
		SetFields: make(map[string]bool),
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		cerr := &ConfigError{Path: path, Message: err.Error()}
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			cerr.Line, _ = strconv.Atoi(m[1])
		}
		return nil, cerr
	}
	if len(doc.Content) == 0 {
		return cfg, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Path: path, Line: root.Line, Column: root.Column, Message: "config must be a mapping"}
	}
	if err := applyNode(cfg, path, "", root); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyNode(cfg *Config, path, prefix string, node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		key := k.Value
		if prefix != "" {
			key = prefix + "." + k.Value
		}
		if v.Kind == yaml.MappingNode {
			if err := applyNode(cfg, path, key, v); err != nil {
				return err
			}
			continue
		}
		if _, ok := fieldByKey(key); !ok {
			return &ConfigError{Path: path, Line: k.Line, Column: k.Column, Message: fmt.Sprintf("unknown key %q", key)}
		}
		if v.Kind != yaml.ScalarNode {
			return &ConfigError{Path: path, Line: v.Line, Column: v.Column, Message: fmt.Sprintf("%s must be a scalar", key)}
		}
		if v.ShortTag() == "!!null" {
			continue
		}
		if err := cfg.Set(key, v.Value, ""); err != nil {
			return &ConfigError{Path: path, Line: v.Line, Column: v.Column, Message: err.Error()}
		}
		cfg.SetFields[key] = true
	}
	return nil
}

// Loader resolves config files and environment relative to explicit
// directories.
type Loader struct {
	// WorkDir holds the local config and .env file. Empty means the
	// current directory.
	WorkDir string
	// GlobalDir replaces os.UserConfigDir. Empty means the user config dir.
	GlobalDir string
	// Getenv reads the process environment. nil means os.Getenv.
	Getenv func(string) string
	// Flags are applied last, keyed by config key.
	Flags map[string]string
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindLocalConfig returns the local config path in dir, or "".
func FindLocalConfig(dir string) string {
	return firstExisting(dir, LocalConfigFileNames)
}

// FindGlobalConfig returns the global config path, or "".
func FindGlobalConfig(base string) string {
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return firstExisting(filepath.Join(base, GlobalConfigDir), GlobalConfigFileNames)
}

// Load merges all sources.
// Precedence: flags > env > .env > local config > global config > defaults
func (l Loader) Load() (*Config, error) {
	workDir := l.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	cfg := NewDefault()

	if path := FindGlobalConfig(l.GlobalDir); path != "" {
		global, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Merge(global, SourceGlobal); err != nil {
			return nil, err
		}
	}

	if path := FindLocalConfig(workDir); path != "" {
		local, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Merge(local, SourceLocal); err != nil {
			return nil, err
		}
	}

	dotenv, err := ReadDotEnv(workDir)
	if err != nil {
		return nil, err
	}
	if err := LoadEnvConfig(cfg, l.Getenv, dotenv); err != nil {
		return nil, err
	}

	var errs []error
	for key, v := range l.Flags {
		if err := cfg.Set(key, v, SourceFlag); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAll loads configuration from the current directory and the user
// config dir, applying flags last.
func LoadAll(flags map[string]string) (*Config, error) {
	return Loader{Flags: flags}.Load()
}
