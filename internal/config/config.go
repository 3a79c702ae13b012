package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"

	"datadist/internal/distributor"
)

var ErrParsingConfig = errors.New("failed to parse environment variables into config")

// Config holds the runtime settings of the datadist command.
type Config struct {
	BaseDir                 string        `env:"DATADIST_BASE_DIR,required,notEmpty"`
	BaseURL                 string        `env:"DATADIST_BASE_URL,required,notEmpty"`
	TemplateURL             string        `env:"DATADIST_TEMPLATE_URL"`
	SlugLength              int           `env:"DATADIST_SLUG_LENGTH" envDefault:"32"`
	SuppressInsecureWarning bool          `env:"DATADIST_SUPPRESS_INSECURE_WARNING" envDefault:"false"`
	TemplateTimeout         time.Duration `env:"DATADIST_TEMPLATE_TIMEOUT" envDefault:"5s"`
	ProbeTimeout            time.Duration `env:"DATADIST_PROBE_TIMEOUT" envDefault:"3s"`
	TLSSkipVerify           bool          `env:"DATADIST_TLS_SKIP_VERIFY" envDefault:"false"`
	CABundle                string        `env:"DATADIST_CA_BUNDLE"`

	BindAddr  string `env:"BIND_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// Distributor maps the settings onto a distributor configuration.
func (c Config) Distributor() distributor.Config {
	return distributor.Config{
		BaseDir:                 c.BaseDir,
		BaseURL:                 c.BaseURL,
		TemplateURL:             c.TemplateURL,
		SlugLength:              c.SlugLength,
		SuppressInsecureWarning: c.SuppressInsecureWarning,
	}
}

// TLSVerify returns the verification mode selected by the settings.
func (c Config) TLSVerify() distributor.TLSVerify {
	return distributor.TLSVerify{
		Skip:     c.TLSSkipVerify,
		CABundle: c.CABundle,
	}
}
