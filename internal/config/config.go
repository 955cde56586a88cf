package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env string `yaml:"env"`
	// BaseURL is prepended to short codes when composing short links.
	BaseURL    string `yaml:"base_url"`
	HTTPServer `yaml:"http_server"`
	Registry   `yaml:"registry"`
	Clicks     `yaml:"clicks"`
	GeoIP      `yaml:"geoip"`
	RateLimit  `yaml:"rate_limit"`
	LogShip    `yaml:"log_ship"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Registry struct {
	ShortCodeLength        int           `yaml:"short_code_length"`
	DefaultValidityMinutes int           `yaml:"default_validity_minutes"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"`
}

var defaultRegistry = Registry{
	ShortCodeLength:        6,
	DefaultValidityMinutes: 30,
	CleanupInterval:        time.Minute,
}

type Clicks struct {
	BufferSize    int           `yaml:"buffer_size"`
	WorkerCount   int           `yaml:"worker_count"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

var defaultClicks = Clicks{
	BufferSize:    1024,
	WorkerCount:   4,
	LookupTimeout: 2 * time.Second,
}

type GeoIP struct {
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

var defaultGeoIP = GeoIP{
	Endpoint:  "http://ip-api.com/json",
	Timeout:   2 * time.Second,
	CacheSize: 1024,
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

var defaultRateLimit = RateLimit{
	Enabled: true,
	RPS:     10,
	Burst:   20,
}

type LogShip struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

var defaultLogShip = LogShip{
	BatchSize:     64,
	FlushInterval: 5 * time.Second,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Registry = defaultRegistry
	cfg.Clicks = defaultClicks
	cfg.GeoIP = defaultGeoIP
	cfg.RateLimit = defaultRateLimit
	cfg.LogShip = defaultLogShip
}
