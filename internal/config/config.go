// Package config loads strand's settings from flags, environment and an
// optional YAML file, and sets up diagnostic logging.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/atikulmunna/strand/internal/coordinator"
	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/transport"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// STRAND_BASE_URL.
const EnvPrefix = "STRAND"

// Config is the resolved configuration.
type Config struct {
	BaseURL   string `mapstructure:"base_url"`
	Instance  string `mapstructure:"instance"`
	Transport string `mapstructure:"transport"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`

	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	ShortPollTimeout     time.Duration `mapstructure:"short_poll_timeout"`
	ShortPollInterval    time.Duration `mapstructure:"short_poll_interval"`
	LongPollTimeout      time.Duration `mapstructure:"long_poll_timeout"`
	LongPollMaxRetries   int           `mapstructure:"long_poll_max_retries"`
	LongPollRetryDelay   time.Duration `mapstructure:"long_poll_retry_delay"`
	SSERetry             time.Duration `mapstructure:"sse_retry"`
	SocketConnectTimeout time.Duration `mapstructure:"socket_connect_timeout"`
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	d := transport.DefaultConfig("", "")
	v.SetDefault("base_url", "http://localhost:3001")
	v.SetDefault("instance", "")
	v.SetDefault("transport", string(model.ShortPolling))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("settle_delay", coordinator.DefaultSettle)
	v.SetDefault("short_poll_timeout", d.ShortPollTimeout)
	v.SetDefault("short_poll_interval", time.Duration(0))
	v.SetDefault("long_poll_timeout", d.LongPollTimeout)
	v.SetDefault("long_poll_max_retries", d.LongPollMaxRetries)
	v.SetDefault("long_poll_retry_delay", d.LongPollRetryDelay)
	v.SetDefault("sse_retry", d.SSERetry)
	v.SetDefault("socket_connect_timeout", d.SocketTimeout)
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate rejects settings no strategy could run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base_url %q: missing host", c.BaseURL)
	}
	if _, err := model.ParseTransportKind(c.Transport); err != nil {
		return err
	}
	if c.LongPollMaxRetries < 0 {
		return errors.New("long_poll_max_retries must not be negative")
	}
	if c.ShortPollInterval < 0 {
		return errors.New("short_poll_interval must not be negative")
	}
	return nil
}

// Kind returns the configured initial transport. Validate has already
// checked it.
func (c Config) Kind() model.TransportKind {
	k, err := model.ParseTransportKind(c.Transport)
	if err != nil {
		return model.ShortPolling
	}
	return k
}

// TransportConfig builds the strategy settings for instanceID.
func (c Config) TransportConfig(instanceID string) transport.Config {
	tc := transport.DefaultConfig(c.BaseURL, instanceID)
	tc.ShortPollTimeout = c.ShortPollTimeout
	tc.ShortPollInterval = c.ShortPollInterval
	tc.LongPollTimeout = c.LongPollTimeout
	tc.LongPollMaxRetries = c.LongPollMaxRetries
	tc.LongPollRetryDelay = c.LongPollRetryDelay
	tc.SSERetry = c.SSERetry
	tc.SocketTimeout = c.SocketConnectTimeout
	return tc
}

// RestartKeys lists, in declaration order, the keys whose values differ
// between c and next. log_level is applied live and never listed.
func (c Config) RestartKeys(next Config) []string {
	cur, nv := reflect.ValueOf(c), reflect.ValueOf(next)
	t := cur.Type()

	var keys []string
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("mapstructure")
		if key == "log_level" {
			continue
		}
		if cur.Field(i).Interface() != nv.Field(i).Interface() {
			keys = append(keys, key)
		}
	}
	return keys
}
