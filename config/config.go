package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wricardo/wsprobe/probe"
)

// EnvPrefix prefixes every environment override, e.g. WSPROBE_URL.
const EnvPrefix = "WSPROBE"

// Config holds the client session settings and the voting server section.
type Config struct {
	URL              string        `mapstructure:"url"`
	APIBaseURL       string        `mapstructure:"api_base_url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	ProbeRetryDelay  time.Duration `mapstructure:"probe_retry_delay"`
	Server           ServerConfig  `mapstructure:"server"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	VotingDuration int           `mapstructure:"voting_duration"`
	VotingTick     time.Duration `mapstructure:"voting_tick"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", "ws://127.0.0.1:8080/ws")
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("handshake_timeout", "10s")
	v.SetDefault("send_timeout", "1s")
	v.SetDefault("retry_delay", "1s")
	v.SetDefault("read_timeout", "2s")
	v.SetDefault("probe_interval", "0s")
	v.SetDefault("probe_retry_delay", "1s")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.voting_duration", 15)
	v.SetDefault("server.voting_tick", "1s")
}

// Load reads the configuration. An explicit file must exist; without one,
// wsprobe.yaml is looked up in the working directory and ./config, and
// defaults apply when none is found. Environment variables win over both.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("wsprobe")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no session can run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid url %q: scheme must be ws or wss", c.URL)
	}

	for name, d := range map[string]time.Duration{
		"send_timeout": c.SendTimeout,
		"retry_delay":  c.RetryDelay,
		"read_timeout": c.ReadTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.ProbeInterval < 0 || c.ProbeRetryDelay < 0 || c.HandshakeTimeout < 0 {
		return errors.New("probe and handshake durations must not be negative")
	}
	return nil
}

// Timing converts the session bounds for probe.Client.
func (c *Config) Timing() probe.Timing {
	return probe.Timing{
		SendTimeout:      c.SendTimeout,
		RetryDelay:       c.RetryDelay,
		ReadTimeout:      c.ReadTimeout,
		ProbeInterval:    c.ProbeInterval,
		ProbeRetryDelay:  c.ProbeRetryDelay,
		HandshakeTimeout: c.HandshakeTimeout,
	}
}
