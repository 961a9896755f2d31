package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"

	AuthFirebase = "firebase"
	AuthNone     = "none"
)

type Config struct {
	ProjectID     string `env:"PROJECTID"`
	Region        string `env:"REGION"`
	LogLevel      string `env:"LOGLEVEL" envDefault:"info"`
	LogFile       string `env:"LOGFILE"`
	LogMaxSizeMB  int    `env:"LOGMAXSIZEMB" envDefault:"50"`
	LogMaxBackups int    `env:"LOGMAXBACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOGMAXAGEDAYS" envDefault:"14"`
	Port          string `env:"PORT" envDefault:"8080"`
	StoreBackend  string `env:"STOREBACKEND" envDefault:"firestore"`
	SQLitePath    string `env:"SQLITEPATH" envDefault:"dashboards.db"`
	AuthMode      string `env:"AUTHMODE" envDefault:"firebase"`
	NumberLocale  string `env:"NUMBERLOCALE" envDefault:"en"`
}

// New reads an optional .env file, then the process environment.
func New(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreFirestore:
		if c.ProjectID == "" {
			return errors.New("PROJECTID is required for the firestore store")
		}
	case StoreSQLite:
	default:
		return fmt.Errorf("unknown STOREBACKEND %q", c.StoreBackend)
	}
	switch c.AuthMode {
	case AuthFirebase, AuthNone:
	default:
		return fmt.Errorf("unknown AUTHMODE %q", c.AuthMode)
	}
	return nil
}
