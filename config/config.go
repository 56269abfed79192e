package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	userwebhttp "github.com/sagarc03/userweb/http"
	"github.com/sagarc03/userweb/site"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for userweb.
type Config struct {
	Env          string                 `mapstructure:"env" yaml:"env"`
	Server       ServerConfig           `mapstructure:"server" yaml:"server"`
	Sites        site.Config            `mapstructure:"sites" yaml:"sites"`
	Executor     ExecutorConfig         `mapstructure:"executor" yaml:"executor"`
	Transclusion TransclusionConfig     `mapstructure:"transclusion" yaml:"transclusion"`
	Index        IndexConfig            `mapstructure:"index" yaml:"index"`
	CORS         userwebhttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Log          LogConfig              `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port         int   `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout  int   `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=1"`
	WriteTimeout int   `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=1"`
	IdleTimeout  int   `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=1"`
	MaxBodySize  int64 `mapstructure:"max_body_size" yaml:"max_body_size" validate:"min=0"`
	TrustProxy   bool  `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// ExecutorConfig holds executable handler limits.
type ExecutorConfig struct {
	Timeout          int   `mapstructure:"timeout" yaml:"timeout" validate:"min=1"`
	MaxOutput        int64 `mapstructure:"max_output" yaml:"max_output" validate:"min=1"`
	TranscludeOutput bool  `mapstructure:"transclude_output" yaml:"transclude_output"`
}

// TransclusionConfig holds transclusion limits.
type TransclusionConfig struct {
	MaxDepth  int   `mapstructure:"max_depth" yaml:"max_depth" validate:"min=1,max=64"`
	MaxOutput int64 `mapstructure:"max_output" yaml:"max_output" validate:"min=1"`
}

// IndexConfig holds directory listing settings.
type IndexConfig struct {
	PeopleTitle string `mapstructure:"people_title" yaml:"people_title" validate:"required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// Seconds converts a configured number of seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":      "server.port",
	"log-level": "log.level",
	"home-base": "sites.home_base",
	"site-dir":  "sites.dir",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.max_body_size", 10<<20)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("sites.home_base", "")
	v.SetDefault("sites.dir", site.DefaultDir)

	v.SetDefault("executor.timeout", 30)
	v.SetDefault("executor.max_output", 16<<20)
	v.SetDefault("executor.transclude_output", false)

	v.SetDefault("transclusion.max_depth", 10)
	v.SetDefault("transclusion.max_output", 4<<20)

	v.SetDefault("index.people_title", "People")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "POST"})
	v.SetDefault("cors.allowed_headers", []string{})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 0)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("userweb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/userweb")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("USERWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
