// Package config loads the service configuration from a TOML file and fills
// in defaults for everything the file leaves out.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration lets TOML files carry durations as strings like "5m" or "15s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	// Secret keys every token the service issues; changing it invalidates
	// all previously handed-out URLs.
	Secret string `toml:"secret"`

	Server   Server              `toml:"server"`
	Cache    Cache               `toml:"cache"`
	Redis    *Redis              `toml:"redis"`
	Provider map[string]Provider `toml:"provider"`

	// Interval is the default refresh interval in seconds.
	Interval int `toml:"interval"`
	// Strict controls the default managed-config strict flag.
	Strict bool `toml:"strict"`
}

type Server struct {
	Listen string `toml:"listen"`
	// ExternalURL is the origin clients reach this service under; every
	// generated URL is rooted here.
	ExternalURL string `toml:"external_url"`

	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

type Cache struct {
	Capacity     int      `toml:"capacity"`
	TTL          Duration `toml:"ttl"`
	FetchTimeout Duration `toml:"fetch_timeout"`
}

type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Provider is one upstream subscription provider account.
type Provider struct {
	// APIBaseURL is the provider's panel API root, e.g.
	// https://www.blnew.com/proxy.
	APIBaseURL string `toml:"api_base_url"`
	Email      string `toml:"email"`
	Password   string `toml:"password"`
	// SubURL can pin the raw subscription link directly, skipping the
	// login/getSubscribe round trip.
	SubURL    string            `toml:"sub_url"`
	UserAgent string            `toml:"user_agent"`
	Headers   map[string]string `toml:"headers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Listen:            "127.0.0.1:8080",
			ExternalURL:       "http://127.0.0.1:8080",
			ReadHeaderTimeout: Duration(5 * time.Second),
			ShutdownTimeout:   Duration(10 * time.Second),
		},
		Cache: Cache{
			Capacity:     64,
			TTL:          Duration(10 * time.Minute),
			FetchTimeout: Duration(15 * time.Second),
		},
		Interval: 86400,
		Strict:   true,
	}
}

// Load reads the TOML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("配置缺少 secret")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("配置缺少 server.listen")
	}
	u, err := url.Parse(c.Server.ExternalURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.external_url 不是合法的绝对 URL: %q", c.Server.ExternalURL)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval 必须为正数: %d", c.Interval)
	}
	for name, p := range c.Provider {
		if p.SubURL == "" && (p.APIBaseURL == "" || p.Email == "" || p.Password == "") {
			return fmt.Errorf("provider %q 需要 sub_url 或完整的 api_base_url/email/password", name)
		}
	}
	return nil
}

// ExternalURL parses the configured external origin. Validate has already
// checked it.
func (c *Config) ExternalURLParsed() (*url.URL, error) {
	return url.Parse(c.Server.ExternalURL)
}
