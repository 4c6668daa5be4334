// Package config loads dbdelta settings from config files, .env files, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem config and .env files are read from.
var AppFs = afero.NewOsFs()

// Keys understood in .dbdelta.yaml and as DBDELTA_* environment variables.
const (
	KeyDatabaseURL       = "database_url"
	KeyMigrationsDir     = "migrations_dir"
	KeyShadowDatabaseURL = "shadow_database_url"
	KeyPollInterval      = "poll_interval"
	KeyUnsafe            = "unsafe"
	KeySchema            = "schema"
	KeyMetricsTextfile   = "metrics_textfile"
	KeyDebug             = "debug"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL       string
	MigrationsDir     string
	ShadowDatabaseURL string
	PollInterval      time.Duration
	Unsafe            bool
	Schema            string
	MetricsTextfile   string
	Debug             bool
	// ConfigFile is the config file that was read, empty when none was found.
	ConfigFile string
}

// Setup registers search paths, the env prefix and defaults on v.
func Setup(v *viper.Viper) error {
	home, err := homedir.Dir()
	if err != nil {
		return fmt.Errorf("failed to find home directory: %w", err)
	}

	v.SetFs(AppFs)
	v.SetConfigName(".dbdelta")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "dbdelta"))

	v.SetEnvPrefix("DBDELTA")
	v.AutomaticEnv()

	v.SetDefault(KeyMigrationsDir, "migrations")
	v.SetDefault(KeyPollInterval, "2s")
	v.SetDefault(KeyUnsafe, false)
	v.SetDefault(KeyDebug, false)
	return nil
}

// LoadEnvFiles loads .env and then .env.local, which overrides it. Variables already present in
// the process environment win over .env but not over .env.local.
func LoadEnvFiles() error {
	if err := loadEnvFile(".env", false); err != nil {
		return err
	}
	return loadEnvFile(".env.local", true)
}

func loadEnvFile(name string, override bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for key, value := range values {
		if _, set := os.LookupEnv(key); set && !override {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Load reads env files and the config file into v and returns the resolved settings. A missing
// config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := Setup(v); err != nil {
		return nil, err
	}
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:       v.GetString(KeyDatabaseURL),
		MigrationsDir:     v.GetString(KeyMigrationsDir),
		ShadowDatabaseURL: v.GetString(KeyShadowDatabaseURL),
		PollInterval:      v.GetDuration(KeyPollInterval),
		Unsafe:            v.GetBool(KeyUnsafe),
		Schema:            v.GetString(KeySchema),
		MetricsTextfile:   v.GetString(KeyMetricsTextfile),
		Debug:             v.GetBool(KeyDebug),
		ConfigFile:        v.ConfigFileUsed(),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %q", v.GetString(KeyPollInterval))
	}
	return cfg, nil
}

// LoadConfig loads configuration into the global viper instance.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}
