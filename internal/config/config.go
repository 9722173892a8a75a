package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

const (
	// DefaultConfigName is looked up in the working directory when no
	// configuration path is given.
	DefaultConfigName = "imap.yaml"

	envPrefix = "IMAP"
)

// Directory defaults of the polytrack deobfuscation workflow.
const (
	DefaultOriginalDirectory  = "polytrack"
	DefaultModifiedDirectory  = "polytrack-deobfuscated"
	DefaultSourcemapDirectory = "polytrack-sourcemaps"
	DefaultOutputDirectory    = "polytrack-generated"
)

// LogConfig defines settings for the rotating log file
type LogConfig struct {
	Filename   string `yaml:"filename" mapstructure:"filename"`
	Level      string `yaml:"level" mapstructure:"level"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // megabytes
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // rotated files kept
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Config holds all configuration settings for imap.
// Struct tags control how Viper maps config file keys and environment variables.
type Config struct {
	// Input/Output settings
	OriginalDirectory  string `yaml:"original_directory" mapstructure:"original_directory"`
	ModifiedDirectory  string `yaml:"modified_directory" mapstructure:"modified_directory"`
	SourcemapDirectory string `yaml:"sourcemap_directory" mapstructure:"sourcemap_directory"`
	OutputDirectory    string `yaml:"output_directory" mapstructure:"output_directory"`

	// File Handling
	Extensions        []string `yaml:"extensions" mapstructure:"extensions"`                 // Source file extensions to process
	ArtifactExtension string   `yaml:"artifact_extension" mapstructure:"artifact_extension"` // Extension of mapping artifacts
	SkipPaths         []string `yaml:"skip" mapstructure:"skip"`                             // Glob patterns of relative paths to ignore

	// General behavior
	Verify        bool `yaml:"verify" mapstructure:"verify"`                 // Regenerate after create and warn on mismatch
	AllowUnmapped bool `yaml:"allow_unmapped" mapstructure:"allow_unmapped"` // Copy/skip files without artifacts instead of failing
	Silent        bool `yaml:"silent" mapstructure:"silent"`                 // Suppress console output

	Log LogConfig `yaml:"log" mapstructure:"log"`
}

var (
	// Testing controls whether output is suppressed for testing purposes
	Testing bool
)

// PrintInfo prints an informational line unless running under tests.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		OriginalDirectory:  DefaultOriginalDirectory,
		ModifiedDirectory:  DefaultModifiedDirectory,
		SourcemapDirectory: DefaultSourcemapDirectory,
		OutputDirectory:    DefaultOutputDirectory,
		Extensions:         []string{".js", ".ts", ".jsx", ".tsx"},
		ArtifactExtension:  ".map",
		SkipPaths:          []string{"node_modules", ".git"},
		Verify:             true,
		AllowUnmapped:      false,
		Silent:             false,
		Log: LogConfig{
			Filename:   ".imap.log",
			Level:      "info",
			Verbose:    false,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// defaults flattens DefaultConfig into viper keys.
func defaults() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"original_directory":  d.OriginalDirectory,
		"modified_directory":  d.ModifiedDirectory,
		"sourcemap_directory": d.SourcemapDirectory,
		"output_directory":    d.OutputDirectory,
		"extensions":          d.Extensions,
		"artifact_extension":  d.ArtifactExtension,
		"skip":                d.SkipPaths,
		"verify":              d.Verify,
		"allow_unmapped":      d.AllowUnmapped,
		"silent":              d.Silent,
		"log.filename":        d.Log.Filename,
		"log.level":           d.Log.Level,
		"log.verbose":         d.Log.Verbose,
		"log.max_size":        d.Log.MaxSize,
		"log.max_backups":     d.Log.MaxBackups,
		"log.max_age":         d.Log.MaxAge,
		"log.compress":        d.Log.Compress,
	}
}

// NewViper returns a viper instance carrying the defaults and the IMAP_
// environment binding, e.g. IMAP_LOG_LEVEL for log.level.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return v
}

// LoadConfig reads configuration from file and environment variables and
// returns a filled Config struct. An explicitly named file must exist; the
// default imap.yaml is optional.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWith(NewViper(), configPath)
}

// LoadConfigWith is LoadConfig on a caller-provided viper instance, so command
// line flags bound to it take part in the merge.
func LoadConfigWith(v *viper.Viper, configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigName
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, imaperrors.New(imaperrors.ConfigError, configPath, "error reading config file", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, imaperrors.New(imaperrors.ConfigError, configPath, "specified config file not found", nil)
		}
	} else {
		return nil, imaperrors.New(imaperrors.ConfigError, configPath, "error checking config file", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, imaperrors.New(imaperrors.ConfigError, configPath, "error unmarshalling config", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
	if c.ArtifactExtension != "" && !strings.HasPrefix(c.ArtifactExtension, ".") {
		c.ArtifactExtension = "." + c.ArtifactExtension
	}
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	if len(c.Extensions) == 0 {
		return imaperrors.New(imaperrors.ConfigError, "", "extensions must not be empty", nil)
	}
	if c.ArtifactExtension == "" {
		return imaperrors.New(imaperrors.ConfigError, "", "artifact_extension must not be empty", nil)
	}
	for _, ext := range c.Extensions {
		if ext == "" || ext == c.ArtifactExtension {
			return imaperrors.New(imaperrors.ConfigError, "",
				fmt.Sprintf("invalid source extension %q", ext), nil)
		}
	}
	for _, pattern := range c.SkipPaths {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return imaperrors.New(imaperrors.ConfigError, "", fmt.Sprintf("invalid skip pattern %q", pattern), err)
		}
	}
	return nil
}

// SaveConfig saves the default configuration to a file.
func SaveConfig(configPath string) error {
	return DefaultConfig().Save(configPath)
}

// Save writes the configuration as YAML.
func (c *Config) Save(configPath string) error {
	yamlData, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return imaperrors.IOf(dir, err, "error creating directory for config file")
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return imaperrors.IOf(configPath, err, "error writing config file")
	}
	PrintInfo("Info: Saved configuration to %s\n", configPath)
	return nil
}
