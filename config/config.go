package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"blobgate/database"
	blobhttp "blobgate/http"
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

// Config is the root configuration struct for blobgate.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Service  ServiceConfig       `mapstructure:"service"`
	Backend  BackendConfig       `mapstructure:"backend"`
	Storage  StorageConfig       `mapstructure:"storage"`
	S3       S3Config            `mapstructure:"s3"`
	FTP      FTPConfig           `mapstructure:"ftp"`
	Database database.Config     `mapstructure:"database"`
	Auth     AuthConfig          `mapstructure:"auth"`
	CORS     blobhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	// CleanupTimeout bounds compensation deletes, in seconds.
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// BackendConfig selects the active content backend.
type BackendConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=fs s3 ftp db"`
}

// StorageConfig holds filesystem backend configuration.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// S3Config holds S3 backend configuration.
type S3Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	SessionToken   string `mapstructure:"session_token"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	// Timeout bounds each S3 request, in seconds.
	Timeout int `mapstructure:"timeout" validate:"min=1"`
}

// FTPConfig holds FTP backend configuration.
type FTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	BaseDir  string `mapstructure:"base_dir"`
	// Timeout bounds the control connection, in seconds.
	Timeout int `mapstructure:"timeout" validate:"min=1"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Token is the static bearer token; empty disables authentication.
	Token string `mapstructure:"token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"backend":      "backend.type",
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"storage-path": "storage.path",
	"port":         "server.port",
	"auth-token":   "auth.token",
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
	v.SetDefault("server.port", 5709)

	v.SetDefault("service.cleanup_timeout", 30) // seconds

	v.SetDefault("backend.type", "fs")

	v.SetDefault("storage.path", "./data")

	// Empty defaults register the keys with viper so environment variables
	// reach Unmarshal.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.session_token", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.timeout", 10)

	v.SetDefault("ftp.host", "")
	v.SetDefault("ftp.port", 21)
	v.SetDefault("ftp.user", "")
	v.SetDefault("ftp.password", "")
	v.SetDefault("ftp.tls", false)
	v.SetDefault("ftp.base_dir", "/")
	v.SetDefault("ftp.timeout", 10)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "blobgate.db")

	v.SetDefault("auth.token", "")

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
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("BLOBGATE")
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
