package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// EnvPort names the environment variable that overrides http.port.
const EnvPort = "PORT"

type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Data  DataConfig  `yaml:"data"`
	Model ModelConfig `yaml:"model"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

type HTTPConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DataConfig struct {
	// Path of the training CSV, also served by /api/data.
	Path string `yaml:"path" validate:"required"`
	// StaticDir is the root of the static file passthrough.
	StaticDir string `yaml:"static_dir" validate:"required"`
	// Index is the page served at /, relative to StaticDir.
	Index string `yaml:"index" validate:"required"`
}

type ModelConfig struct {
	Trees    int   `yaml:"trees" validate:"gte=1"`
	Seed     int64 `yaml:"seed"`
	Jobs     int   `yaml:"jobs" validate:"gte=-1"`
	MaxDepth int   `yaml:"max_depth" validate:"gte=0"`
}

type CacheConfig struct {
	// Size is the number of cached predictions; 0 disables the cache.
	Size int `yaml:"size" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Debug      bool   `yaml:"debug"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size" validate:"gte=0"`
	MaxAge     int    `yaml:"max_age" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Data: DataConfig{
			Path:      "ice-cream.csv",
			StaticDir: ".",
			Index:     "index.html",
		},
		Model: ModelConfig{
			Trees: 100,
			Seed:  42,
			Jobs:  -1,
		},
		Cache: CacheConfig{
			Size: 1024,
		},
		Log: LogConfig{
			Level:   "info",
			MaxSize: 100,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and then applies
// the PORT environment variable. A missing file is only an error when
// mustExist is set.
func LoadConfig(path string, mustExist bool) (*Config, error) {
	config := GetDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, config); err != nil {
				return nil, errors.Annotatef(err, "parse config %s", path)
			}
		case os.IsNotExist(err) && !mustExist:
		default:
			return nil, errors.Trace(err)
		}
	}
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, errors.Trace(err)
	}
	return config, nil
}

func (config *Config) applyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvPort); ok && value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.NotValidf("%s=%q", EnvPort, value)
		}
		config.HTTP.Port = port
	}
	return nil
}

// Validate checks value ranges declared in struct tags.
func (config *Config) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	return nil
}
