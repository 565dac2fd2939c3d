package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/cnpj-finder/internal/pipeline"
)

// Config holds the full application configuration.
type Config struct {
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SearchConfig holds Serper API settings.
type SearchConfig struct {
	Key                     string `yaml:"key" mapstructure:"key"`
	BaseURL                 string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs             int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QuerySuffix             string `yaml:"query_suffix" mapstructure:"query_suffix"`
	CircuitFailureThreshold int    `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// EnrichConfig configures the identifier lookup.
type EnrichConfig struct {
	DefaultState   string   `yaml:"default_state" mapstructure:"default_state"`
	DefaultCity    string   `yaml:"default_city" mapstructure:"default_city"`
	DelaySeconds   float64  `yaml:"delay_seconds" mapstructure:"delay_seconds"`
	CandidateSites []string `yaml:"candidate_sites" mapstructure:"candidate_sites"`
	ResultsPerSite int      `yaml:"results_per_site" mapstructure:"results_per_site"`
	Workers        int      `yaml:"workers" mapstructure:"workers"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port           int               `yaml:"port" mapstructure:"port"`
	Users          map[string]string `yaml:"users" mapstructure:"users"`
	AllowedOrigins []string          `yaml:"allowed_origins" mapstructure:"allowed_origins"` // empty disables CORS
	MaxUploadMB    int               `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultCandidateSites are the public CNPJ directories searched, in order.
var DefaultCandidateSites = []string{
	"cnpj.biz",
	"econodata.com.br",
	"casadosdados.com.br",
	"cnpja.com",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CNPJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("search.key", "CNPJ_SEARCH_KEY", "SERPER_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("search.query_suffix", "CNPJ")
	v.SetDefault("search.circuit_failure_threshold", 0)
	v.SetDefault("search.circuit_reset_secs", 30)
	v.SetDefault("enrich.default_state", "SP")
	v.SetDefault("enrich.default_city", "")
	v.SetDefault("enrich.delay_seconds", 1.0)
	v.SetDefault("enrich.candidate_sites", DefaultCandidateSites)
	v.SetDefault("enrich.results_per_site", 3)
	v.SetDefault("enrich.workers", 1)
	v.SetDefault("enrich.rate_limit_rps", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "enrich",
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Search.Key == "" {
		errs = append(errs, "search.key is required (CNPJ_SEARCH_KEY or SERPER_API_KEY)")
	}
	if c.Search.TimeoutSecs <= 0 {
		errs = append(errs, "search.timeout_secs must be > 0")
	}
	if len(c.Enrich.CandidateSites) == 0 {
		errs = append(errs, "enrich.candidate_sites must not be empty")
	}
	if c.Enrich.ResultsPerSite < 1 {
		errs = append(errs, "enrich.results_per_site must be >= 1")
	}
	if c.Enrich.DelaySeconds < 0 {
		errs = append(errs, "enrich.delay_seconds must be >= 0")
	}
	if c.Enrich.Workers < 1 || c.Enrich.Workers > 32 {
		errs = append(errs, "enrich.workers must be between 1 and 32")
	}

	switch mode {
	case "enrich":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if len(c.Server.Users) == 0 {
			errs = append(errs, "server.users must define at least one user")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// PipelineConfig converts the enrich and search sections to a pipeline config.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		DefaultState:   c.Enrich.DefaultState,
		DefaultCity:    c.Enrich.DefaultCity,
		Delay:          time.Duration(c.Enrich.DelaySeconds * float64(time.Second)),
		CandidateSites: append([]string(nil), c.Enrich.CandidateSites...),
		ResultsPerSite: c.Enrich.ResultsPerSite,
		QuerySuffix:    c.Search.QuerySuffix,
		Workers:        c.Enrich.Workers,
		RateLimitRPS:   c.Enrich.RateLimitRPS,
	}
}

// SearchTimeout returns the per-call search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSecs) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
