// Package config loads and validates the dittosftp client configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, bound by the commands)
//  2. Environment variables (DITTOSFTP_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittosftp/internal/bytesize"
)

// Config represents the dittosftp client configuration.
type Config struct {
	// Remote identifies the server and how to authenticate against it
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Transfer tunes the pipelined transfer engine
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Metrics enables the Prometheus registry for session metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// RemoteConfig identifies the SFTP server.
type RemoteConfig struct {
	// Host is the server hostname or address
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the SSH port
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535" yaml:"port"`

	// User is the SSH login name
	User string `mapstructure:"user" validate:"required" yaml:"user"`

	// Password enables password authentication when non-empty
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// IdentityFile enables public key authentication when non-empty
	IdentityFile string `mapstructure:"identity_file" yaml:"identity_file,omitempty"`

	// KnownHostsFile verifies the server host key
	KnownHostsFile string `mapstructure:"known_hosts_file" yaml:"known_hosts_file,omitempty"`

	// InsecureSkipHostKey disables host key verification (tests only)
	InsecureSkipHostKey bool `mapstructure:"insecure_skip_host_key" yaml:"insecure_skip_host_key,omitempty"`
}

// Addr returns the host:port dial address.
func (r RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" validate:"oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// TransferConfig tunes the pipelined transfer loops in the CLI.
//
// Window bounds the number of simultaneously outstanding requests, which
// also bounds the session's pending-response table: each outstanding
// request parks at most one response.
type TransferConfig struct {
	// ChunkSize is the requested length per read/write request; the
	// session may grant less when the server's limit is lower
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"required" yaml:"chunk_size"`

	// Window is the maximum number of outstanding requests
	Window int `mapstructure:"window" validate:"required,gt=0,lte=1024" yaml:"window"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns the Prometheus registry on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Port: 22,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Transfer: TransferConfig{
			ChunkSize: 32 * bytesize.KiB,
			Window:    64,
		},
	}
}

// Load reads configuration from the given file path (optional), the
// environment, and defaults, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DITTOSFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("remote.port", def.Remote.Port)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("transfer.chunk_size", def.Transfer.ChunkSize.Uint64())
	v.SetDefault("transfer.window", def.Transfer.Window)
	v.SetDefault("metrics.enabled", false)
}

// decodeHook chains the text unmarshaler hook (for bytesize.ByteSize
// fields written as "32Ki" or "1Mi") with mapstructure's defaults.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		byteSizeFromNumberHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeFromNumberHook lets plain numeric values decode into ByteSize,
// which the text unmarshaler hook does not cover.
func byteSizeFromNumberHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// Validate checks structural constraints on a loaded configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: field %q fails %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Remote.Password == "" && cfg.Remote.IdentityFile == "" {
		return fmt.Errorf("invalid config: one of remote.password or remote.identity_file is required")
	}
	if !cfg.Remote.InsecureSkipHostKey && cfg.Remote.KnownHostsFile == "" {
		return fmt.Errorf("invalid config: remote.known_hosts_file required unless insecure_skip_host_key is set")
	}
	return nil
}

// WriteDefault writes the default configuration as YAML to path,
// refusing to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %q already exists", path)
	}

	def := Default()
	data, err := yaml.Marshal(&def)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
