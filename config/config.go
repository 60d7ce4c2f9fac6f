package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the CLI's runtime settings.
type Config struct {
	Device struct {
		Host    string        `mapstructure:"host"`
		Auth    string        `mapstructure:"auth"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"device"`
	Storage struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"storage"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// New returns a viper instance with defaults and HILINK_ environment
// lookups applied. Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("hilink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Load reads path into v, if present, and decodes the result. A missing
// file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if strings.TrimSpace(cfg.Device.Host) == "" {
		return nil, errors.New("device.host is required")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.host", "192.168.8.1")
	v.SetDefault("device.auth", "admin:admin")
	v.SetDefault("device.timeout", "30s")

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", ".hilink-data")

	v.SetDefault("log.level", "info")
}
