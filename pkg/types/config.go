package types

import "errors"

// Config holds backend selection and parameters for Database.Attach, plus
// the engine and logging settings read from config.yaml.
type Config struct {
	Backend  string            `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir  string            `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	PageSize int               `json:"page_size" yaml:"page_size" mapstructure:"page_size"`
	Log      LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
	Plugins  []PluginConfig    `json:"plugins,omitempty" yaml:"plugins,omitempty" mapstructure:"plugins"`
}

// LogConfig selects the level, format and destination of the logger.
// An empty Path logs to stderr.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

// PluginConfig allows one type id to be loaded from a Go plugin file.
// It is a list entry rather than a map key because config keys are
// case-folded.
type PluginConfig struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultPageSize is the number of entities fetched per page when streaming.
const DefaultPageSize = 100

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrInvalidPageSize  = errors.New("page size must be positive")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidLogFormat = errors.New("unknown log format")
	ErrInvalidPlugin    = errors.New("plugin needs a type and a path")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownLogFormats = map[string]bool{
	"":     true,
	"text": true,
	"json": true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure. A zero PageSize is accepted and means
// DefaultPageSize.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.PageSize < 0 {
		return ErrInvalidPageSize
	}
	if !knownLogLevels[c.Log.Level] {
		return ErrInvalidLogLevel
	}
	if !knownLogFormats[c.Log.Format] {
		return ErrInvalidLogFormat
	}
	for _, p := range c.Plugins {
		if p.Type == "" || p.Path == "" {
			return ErrInvalidPlugin
		}
	}
	return nil
}

// PluginPaths returns the plugin allowlist keyed by type id.
func (c Config) PluginPaths() map[string]string {
	if len(c.Plugins) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Plugins))
	for _, p := range c.Plugins {
		m[p.Type] = p.Path
	}
	return m
}

// EffectivePageSize returns PageSize, or DefaultPageSize when unset.
func (c Config) EffectivePageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}
