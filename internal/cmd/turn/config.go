// Package turn builds the euroturn command tree.
package turn

import (
	platformcmd "github.com/louisbranch/euroturn/internal/platform/cmd"
	"github.com/louisbranch/euroturn/internal/platform/config"
	"github.com/louisbranch/euroturn/internal/platform/logging"
	"github.com/louisbranch/euroturn/internal/services/turn/app"
)

// Config holds euroturn command configuration.
type Config struct {
	DBPath      string `env:"EUROTURN_DB_PATH"      envDefault:"data/euroturn.db"`
	Provider    string `env:"EUROTURN_PROVIDER"     envDefault:"mistral"`
	Model       string `env:"EUROTURN_MODEL"        envDefault:"mistral-small"`
	APIKey      string `env:"EUROTURN_API_KEY"`
	ProviderURL string `env:"EUROTURN_PROVIDER_URL"`
	CatalogPath string `env:"EUROTURN_CATALOG_PATH"`
	LogLevel    string `env:"EUROTURN_LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"EUROTURN_LOG_FORMAT"   envDefault:"console"`
}

// ParseConfig loads Config from the process environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfigFrom loads Config from an explicit environment map.
func ParseConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := config.ParseEnvFrom(&cfg, environ); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) appConfig() app.Config {
	return app.Config{
		DBPath:       c.DBPath,
		CatalogPath:  c.CatalogPath,
		ProviderName: c.Provider,
		Model:        c.Model,
		APIKey:       c.APIKey,
		ProviderURL:  c.ProviderURL,
	}
}

func (c Config) logFormat() logging.Format {
	return logging.Format(c.LogFormat)
}
