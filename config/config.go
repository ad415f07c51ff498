package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// EndpointsConfig points at the document holding the endpoint name -> target
// mapping. Source is either a local file path or an http(s) URL.
type EndpointsConfig struct {
	Source        string        `mapstructure:"source"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

type ForwardingConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type ProbeConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Endpoints      EndpointsConfig      `mapstructure:"endpoints"`
	Forwarding     ForwardingConfig     `mapstructure:"forwarding"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Probe          ProbeConfig          `mapstructure:"probe"`
}

// Load reads the process configuration. When path is empty the file is
// looked up as config.yaml in ./config and the working directory; a missing
// file is not an error. Environment variables override file values, with
// dots replaced by underscores (SERVER_ADDRESS, ENDPOINTS_SOURCE, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.read_timeout", "15s")
	// Zero disables the write deadline so long upstream streams are not cut.
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("endpoints.source", "./config/endpoints.yaml")
	v.SetDefault("endpoints.watch", true)
	v.SetDefault("endpoints.watch_debounce", "250ms")

	v.SetDefault("forwarding.default_timeout", "30s")
	v.SetDefault("forwarding.dial_timeout", "5s")
	v.SetDefault("forwarding.flush_interval", "100ms")
	v.SetDefault("forwarding.max_idle_conns", 100)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.reset_timeout", "30s")

	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.interval", "10s")
	v.SetDefault("probe.timeout", "2s")
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(ValidateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Min(time.Duration(0))),
					validation.Field(&sc.WriteTimeout, validation.Min(time.Duration(0))),
					validation.Field(&sc.IdleTimeout, validation.Min(time.Duration(0))),
					validation.Field(&sc.ShutdownTimeout, validation.Required),
					validation.Field(&sc.MaxBodyBytes, validation.Required, validation.Min(int64(1))),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
					validation.Field(&lc.MaxSizeMB, validation.Min(0)),
					validation.Field(&lc.MaxBackups, validation.Min(0)),
					validation.Field(&lc.MaxAgeDays, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.Endpoints,
			validation.By(func(value interface{}) error {
				ec, ok := value.(EndpointsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an EndpointsConfig")
				}
				return validation.ValidateStruct(&ec,
					validation.Field(&ec.Source,
						validation.Required,
						validation.By(validateSource),
					),
					validation.Field(&ec.WatchDebounce, validation.Min(time.Duration(0))),
				)
			}),
		),
		validation.Field(&c.Forwarding,
			validation.By(func(value interface{}) error {
				fc, ok := value.(ForwardingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ForwardingConfig")
				}
				return validation.ValidateStruct(&fc,
					validation.Field(&fc.DefaultTimeout, validation.Required, validation.Min(time.Millisecond)),
					validation.Field(&fc.DialTimeout, validation.Required),
					validation.Field(&fc.FlushInterval, validation.Min(time.Duration(0))),
					validation.Field(&fc.MaxIdleConns, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.By(func(value interface{}) error {
				cb, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				if !cb.Enabled {
					return nil
				}
				return validation.ValidateStruct(&cb,
					validation.Field(&cb.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&cb.ResetTimeout, validation.Required),
				)
			}),
		),
		validation.Field(&c.Probe,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProbeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
				}
				if !pc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Interval, validation.Required, validation.Min(100*time.Millisecond)),
					validation.Field(&pc.Timeout, validation.Required),
				)
			}),
		),
	)
}

// ValidateHostPort checks a listen address in host:port form. The host part
// may be empty to listen on every interface.
func ValidateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateSource(value interface{}) error {
	source, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return nil
	}

	parsedURL, err := url.Parse(source)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
