// Package config provides configuration loading functionality.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "server_config.yml"

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "3000"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Env = "dev"
	cfg.Server.LogLevel = "info"

	cfg.Server.WebSocket.Path = "/"
	cfg.Server.WebSocket.MaxMessageBytes = 64 * 1024
	cfg.Server.WebSocket.WriteTimeout = "1s"
	cfg.Server.WebSocket.SendQueue = 64

	cfg.Server.Signaling.PingInterval = "30s"

	cfg.Server.DTLS.Enabled = false
	cfg.Server.DTLS.Port = "3001"
	cfg.Server.DTLS.Certs.Mode = "self_signed"
	cfg.Server.DTLS.Certs.Path = "certs/"
	cfg.Server.DTLS.Certs.Cert = "server.crt"
	cfg.Server.DTLS.Certs.Key = "server.key"
	cfg.Server.DTLS.Certs.CA = "ca.crt"

	cfg.Server.DTLS.Security.ClientAuth = "no_client_cert"
	cfg.Server.DTLS.Security.ExtendedMasterSecret = "request"

	cfg.Server.DTLS.Tuning.MTU = 1200
	cfg.Server.DTLS.Tuning.ReplayProtectionWindow = 64
	cfg.Server.DTLS.Tuning.InsecureSkipVerifyHello = false
	return cfg
}

// Load reads the YAML config at path on top of Default. A missing file is not
// an error: the defaults are returned. The PORT environment variable, when set,
// overrides server.port.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		log.WithField("caller", "config").Infof("%s not found: using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("open config: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		log.WithField("caller", "config").Debugf("Using port %s from PORT", port)
		cfg.Server.Port = port
	}
}

// Validate checks fields that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if err := validatePort(c.Server.Port); err != nil {
		return fmt.Errorf("server.port: %w", err)
	}
	if err := validateHost(c.Server.Host); err != nil {
		return fmt.Errorf("server.host: %w", err)
	}
	if c.Server.WebSocket.MaxMessageBytes < 0 {
		return fmt.Errorf("server.websocket.max_message_bytes must not be negative")
	}
	if c.Server.WebSocket.SendQueue < 0 {
		return fmt.Errorf("server.websocket.send_queue must not be negative")
	}
	if _, err := c.WriteTimeout(); err != nil {
		return err
	}
	if _, err := c.PingInterval(); err != nil {
		return err
	}
	if c.Server.Signaling.MessagesPerSecond < 0 {
		return fmt.Errorf("server.signaling.messages_per_second must not be negative")
	}
	if c.Server.DTLS.Enabled {
		if err := validatePort(c.Server.DTLS.Port); err != nil {
			return fmt.Errorf("server.dtls.port: %w", err)
		}
	}
	return nil
}

// WriteTimeout parses server.websocket.write_timeout. Empty means zero (transport default).
func (c *Config) WriteTimeout() (time.Duration, error) {
	return parseDuration("server.websocket.write_timeout", c.Server.WebSocket.WriteTimeout)
}

// PingInterval parses server.signaling.ping_interval. Zero disables keep-alive.
func (c *Config) PingInterval() (time.Duration, error) {
	return parseDuration("server.signaling.ping_interval", c.Server.Signaling.PingInterval)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}

// WriteDefaultConfig writes the default configuration to the given path.
func WriteDefaultConfig(path string) error {
	return SaveConfig(Default(), path)
}
