package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Upstream API styles.
const (
	APIGenerate = "generate" // Ollama /api/generate
	APIOpenAI   = "openai"   // OpenAI-compatible chat completions
)

var (
	ErrInvalidTimeout  = errors.New("HTTP_TIMEOUT must be greater than zero")
	ErrUnknownAPI      = errors.New("UPSTREAM_API must be \"generate\" or \"openai\"")
	ErrInvalidEndpoint = errors.New("OLLAMA_URL must be an absolute http(s) URL")
	ErrInvalidPort     = errors.New("SERVER_PORT must be between 1 and 65535")
	ErrAPIMismatch     = errors.New("UPSTREAM_API=openai needs an OpenAI-compatible base URL such as http://localhost:11434/v1")
)

type ServerConfig struct {
	Host    string `env:"HOST" envDefault:"0.0.0.0" json:"host"`
	Port    int    `env:"PORT" envDefault:"7860" json:"port"`
	Subpath string `env:"SUBPATH" json:"subpath"`
}

// UpstreamConfig describes the inference endpoint the summarizer talks to.
type UpstreamConfig struct {
	URL            string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434/api/generate"`
	Model          string  `env:"MODEL_NAME" envDefault:"INSERT YOUR MODEL NAME HERE"`
	TimeoutSeconds float64 `env:"HTTP_TIMEOUT" envDefault:"60"`
	API            string  `env:"UPSTREAM_API" envDefault:"generate"`
	APIKey         string  `env:"OPENAI_API_KEY"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimitConfig struct {
	PerMinute int `env:"PER_MINUTE" envDefault:"0"`
	Burst     int `env:"BURST" envDefault:"5"`
}

type FetchConfig struct {
	UserAgent      string `env:"USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"`
	TimeoutSeconds int    `env:"TIMEOUT" envDefault:"20"`
	MaxPageSizeMB  int    `env:"MAX_PAGE_MB" envDefault:"5"`
	// AllowPrivate lets page fetches reach loopback and private networks.
	AllowPrivate   bool   `env:"ALLOW_PRIVATE" envDefault:"false"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"INFO"`
	Format string `env:"FORMAT" envDefault:"text"`
}

type Config struct {
	Server      ServerConfig    `envPrefix:"SERVER_"`
	Upstream    UpstreamConfig
	Redis       RedisConfig     `envPrefix:"REDIS_"`
	RateLimit   RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Fetch       FetchConfig     `envPrefix:"FETCH_"`
	Log         LogConfig       `envPrefix:"LOG_"`
	CORSOrigins []string        `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Timeout returns the per-request upstream timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds * float64(time.Second))
}

// Addr returns the listen address, e.g. "0.0.0.0:7860".
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads the environment (seeded from envFile when it exists) once
// per process. Later calls return the first result.
func LoadConfig(envFile string) (*Config, error) {
	once.Do(func() {
		cfg, cfgErr = Load(envFile)
	})
	return cfg, cfgErr
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}

// Load parses configuration without touching the singleton.
// Variables already present in the environment win over the .env file.
func Load(envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func (c *Config) normalize() {
	c.Server.Subpath = NormalizeSubpath(c.Server.Subpath)
	c.Upstream.API = strings.ToLower(strings.TrimSpace(c.Upstream.API))
	c.Upstream.URL = strings.TrimSpace(c.Upstream.URL)

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Upstream.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if c.Upstream.API != APIGenerate && c.Upstream.API != APIOpenAI {
		return fmt.Errorf("%w, got %q", ErrUnknownAPI, c.Upstream.API)
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w, got %q", ErrInvalidEndpoint, c.Upstream.URL)
	}
	if c.Upstream.API == APIOpenAI && strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/api/generate") {
		return fmt.Errorf("%w, got %q", ErrAPIMismatch, c.Upstream.URL)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// NormalizeSubpath turns "", "/" into "" and "app/" into "/app".
func NormalizeSubpath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
