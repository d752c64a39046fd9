// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Vocab  VocabConfig  `yaml:"vocab" mapstructure:"vocab"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AdminToken     string   `yaml:"admin_token" mapstructure:"admin_token"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// CrawlConfig bounds crawl traversal and record collection.
type CrawlConfig struct {
	MaxPages       int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth       int    `yaml:"max_depth" mapstructure:"max_depth"`
	PageBudgetCap  int    `yaml:"page_budget_cap" mapstructure:"page_budget_cap"`
	DepthBudgetCap int    `yaml:"depth_budget_cap" mapstructure:"depth_budget_cap"`
	FanOut         int    `yaml:"fan_out" mapstructure:"fan_out"`
	EnrichFanOut   int    `yaml:"enrich_fan_out" mapstructure:"enrich_fan_out"`
	DetailSegment  string `yaml:"detail_segment" mapstructure:"detail_segment"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyKB   int     `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	HostRPS     float64 `yaml:"host_rps" mapstructure:"host_rps"`
	HostBurst   int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// Timeout returns the per-fetch timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// VocabConfig holds the keyword vocabularies the extraction heuristics match
// against. These are configuration, not logic: real-world coverage needs
// tuning without code changes.
type VocabConfig struct {
	Services        []string `yaml:"services" mapstructure:"services"`
	Specialties     []string `yaml:"specialties" mapstructure:"specialties"`
	Languages       []string `yaml:"languages" mapstructure:"languages"`
	RoleKeywords    []string `yaml:"role_keywords" mapstructure:"role_keywords"`
	BookingKeywords []string `yaml:"booking_keywords" mapstructure:"booking_keywords"`
	JunkTitles      []string `yaml:"junk_titles" mapstructure:"junk_titles"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIRECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("crawl.max_pages", 25)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.page_budget_cap", 100)
	v.SetDefault("crawl.depth_budget_cap", 5)
	v.SetDefault("crawl.fan_out", 4)
	v.SetDefault("crawl.enrich_fan_out", 4)
	v.SetDefault("crawl.detail_segment", "practices")

	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; CareContactBot/1.0; +https://carecontactdirectory.com)")
	v.SetDefault("fetch.timeout_secs", 12)
	v.SetDefault("fetch.max_body_kb", 2048)
	v.SetDefault("fetch.host_rps", 2.0)
	v.SetDefault("fetch.host_burst", 4)

	v.SetDefault("vocab.services", []string{
		"home care", "home health", "assisted living", "memory care",
		"dementia care", "skilled nursing", "rehab", "respite", "hospice",
		"caregiver", "companionship", "elder care", "senior care", "nursing home",
	})
	v.SetDefault("vocab.specialties", []string{
		"cardiology", "pediatrics", "family medicine", "internal medicine",
		"gastroenterology", "obstetrics", "gynecology", "dermatology",
		"orthopedics", "endocrinology", "geriatrics", "primary care",
	})
	v.SetDefault("vocab.languages", []string{
		"english", "spanish", "chinese", "mandarin", "cantonese", "russian",
		"arabic", "french", "hindi", "italian", "portuguese", "korean", "vietnamese",
	})
	v.SetDefault("vocab.role_keywords", []string{
		"doctor", "provider", "physician", "md", "np", "pa", "profile",
	})
	v.SetDefault("vocab.booking_keywords", []string{
		"book", "schedule", "appointment", "request",
	})
	v.SetDefault("vocab.junk_titles", []string{
		"find a doctor", "find a practice", "find a provider",
		"insurance", "privacy", "terms",
	})

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
