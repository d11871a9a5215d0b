package config

import (
	"fmt"
	"time"
)

type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	RemoteSource RemoteSourceConfig      `mapstructure:"remote_source"`
	Resolution   ResolutionConfig        `mapstructure:"resolution"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	APIs         APIsConfig              `mapstructure:"apis"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Metrics      MetricsConfig           `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig points at the market directory. Leaving Addresses and URL
// empty disables the directory; the name index then comes from the store alone.
type ElasticsearchConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	URL            string   `mapstructure:"url"`
	DirectoryIndex string   `mapstructure:"directory_index"`
	MaxEntries     int      `mapstructure:"max_entries"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RemoteSourceConfig configures the data.gov.in Agmarknet resource.
type RemoteSourceConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	ResourceID     string  `mapstructure:"resource_id"`
	APIKey         string  `mapstructure:"api_key"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
	PageLimit      int     `mapstructure:"page_limit"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // milliseconds, 0 disables the cache
	CacheKeyPrefix string  `mapstructure:"cache_key_prefix"`
}

func (r RemoteSourceConfig) Enabled() bool {
	return r.BaseURL != "" && r.APIKey != ""
}

type ResolutionConfig struct {
	HighConfidence       float64 `mapstructure:"high_confidence"`
	SimilarityFloor      float64 `mapstructure:"similarity_floor"`
	MaxCandidates        int     `mapstructure:"max_candidates"`
	CombinedPerSource    int     `mapstructure:"combined_per_source"`
	GeographicLimit      int     `mapstructure:"geographic_limit"`
	MaxLookbackDays      int     `mapstructure:"max_lookback_days"`
	MaxAliasesPerName    int     `mapstructure:"max_aliases_per_name"`
	IndexRefreshInterval int     `mapstructure:"index_refresh_interval"` // milliseconds, 0 disables reload
	AliasTablePath       string  `mapstructure:"alias_table_path"`       // empty uses the embedded table
	TimeZone             string  `mapstructure:"time_zone"`
}

// MaxLookbackCeiling bounds backfill walks regardless of configuration.
const MaxLookbackCeiling = 90

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type APIsConfig struct {
	GenAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"genai"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
