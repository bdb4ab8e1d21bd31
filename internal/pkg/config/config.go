package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Backend types understood by the backend factory.
const (
	BackendPelias    = "pelias"
	BackendHERE      = "here"
	BackendNominatim = "nominatim"
)

// KnownBackendTypes lists every accepted BackendConfig.Type.
var KnownBackendTypes = []string{BackendPelias, BackendHERE, BackendNominatim}

// BackendConfig describes one remote search backend.
type BackendConfig struct {
	// Name identifies the backend in logs, metrics and cache keys. Defaults to Type.
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	// Timeout in seconds for a single request.
	Timeout int `mapstructure:"timeout"`
	// UserAgent is sent on every request (Nominatim's usage policy requires one).
	UserAgent string `mapstructure:"user_agent"`
}

// DisplayName is Name, or Type when no name is set.
func (b BackendConfig) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Type
}

// IsZero reports an empty descriptor, used in backups to mean "no backup".
func (b BackendConfig) IsZero() bool {
	return b.Type == "" && b.URL == "" && b.Name == ""
}

type TransitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	// ReverseRadius bounds reverse lookups, in meters.
	ReverseRadius float64 `mapstructure:"reverse_radius"`
}

// GeocoderConfig wires search backends. Backups is positional: Backups[i]
// backs up Backends[i], and an empty entry means no backup.
type GeocoderConfig struct {
	Backends                []BackendConfig `mapstructure:"backends"`
	Backups                 []BackendConfig `mapstructure:"backups"`
	Transit                 TransitConfig   `mapstructure:"transit"`
	DefaultSize             int             `mapstructure:"default_size"`
	DefaultLayers           []string        `mapstructure:"default_layers"`
	DistanceThreshold       float64         `mapstructure:"distance_threshold"`
	TransitCategoryPrefixes []string        `mapstructure:"transit_category_prefixes"`
	// CacheTTL in seconds; 0 stores entries without expiry.
	CacheTTL int `mapstructure:"cache_ttl"`
	// WarmQueries are autocomplete texts the cache warmer always runs.
	WarmQueries []string `mapstructure:"warm_queries"`
	// WarmInterval in seconds between cache warm runs.
	WarmInterval int `mapstructure:"warm_interval"`
	// WarmHotLimit caps how many of the most requested queries are warmed per run.
	WarmHotLimit int `mapstructure:"warm_hot_limit"`
}

// Load reads configuration from file and environment variables. When files
// are given the first one is read and must exist; otherwise config.yaml is
// looked up in . and ./configs and may be missing.
func Load(service string, files ...string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geocoder")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geocoder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geocoder-cache-warm")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocoder.transit.enabled", true)
	v.SetDefault("geocoder.transit.name", "transit")
	v.SetDefault("geocoder.transit.reverse_radius", 500)
	v.SetDefault("geocoder.default_size", 4)
	v.SetDefault("geocoder.default_layers", []string{"venue", "address", "street", "intersection"})
	v.SetDefault("geocoder.distance_threshold", 7500)
	v.SetDefault("geocoder.transit_category_prefixes", []string{"400-4100"})
	v.SetDefault("geocoder.cache_ttl", 86400)
	v.SetDefault("geocoder.warm_interval", 900)
	v.SetDefault("geocoder.warm_hot_limit", 50)

	// Config file
	if len(files) > 0 {
		v.SetConfigFile(files[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", files[0], err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: GEOCODER_DATABASE_HOST → database.host
	v.SetEnvPrefix("GEOCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
// All problems are reported together as a *domain.ConfigurationError.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Geocoder.Transit.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	errs = append(errs, c.Geocoder.validate()...)

	if len(errs) > 0 {
		return &domain.ConfigurationError{Problems: errs}
	}
	return nil
}

func (g GeocoderConfig) validate() []string {
	var errs []string

	if len(g.Backends) == 0 && !g.Transit.Enabled {
		errs = append(errs, "geocoder.backends is empty and the transit backend is disabled")
	}
	if len(g.Backups) > 0 && len(g.Backups) != len(g.Backends) {
		errs = append(errs, fmt.Sprintf("geocoder.backups has %d entries, expected %d (one per backend)", len(g.Backups), len(g.Backends)))
	}
	if g.DefaultSize < 0 {
		errs = append(errs, "geocoder.default_size must not be negative")
	}
	if g.CacheTTL < 0 {
		errs = append(errs, "geocoder.cache_ttl must not be negative")
	}
	if g.WarmInterval < 0 || g.WarmHotLimit < 0 {
		errs = append(errs, "geocoder.warm_interval and geocoder.warm_hot_limit must not be negative")
	}

	names := map[string]bool{}
	if g.Transit.Enabled {
		names[g.Transit.Name] = true
	}
	for i, b := range g.Backends {
		errs = append(errs, b.validate(fmt.Sprintf("geocoder.backends[%d]", i))...)
		if names[b.DisplayName()] {
			errs = append(errs, fmt.Sprintf("geocoder.backends[%d]: duplicate name %q", i, b.DisplayName()))
		}
		names[b.DisplayName()] = true
	}
	for i, b := range g.Backups {
		if b.IsZero() {
			continue
		}
		errs = append(errs, b.validate(fmt.Sprintf("geocoder.backups[%d]", i))...)
	}
	return errs
}

func (b BackendConfig) validate(path string) []string {
	var errs []string
	if !slices.Contains(KnownBackendTypes, b.Type) {
		errs = append(errs, fmt.Sprintf("%s: unknown type %q (want one of %s)", path, b.Type, strings.Join(KnownBackendTypes, ", ")))
	}
	if b.URL == "" {
		errs = append(errs, path+": url is required")
	}
	if b.Type == BackendHERE && b.APIKey == "" {
		errs = append(errs, path+": api_key is required for here")
	}
	if b.Timeout < 0 {
		errs = append(errs, path+": timeout must not be negative")
	}
	return errs
}

// BackupFor returns the backup descriptor for backend i, if one is configured.
func (g GeocoderConfig) BackupFor(i int) (BackendConfig, bool) {
	if i >= len(g.Backups) || g.Backups[i].IsZero() {
		return BackendConfig{}, false
	}
	return g.Backups[i], true
}
