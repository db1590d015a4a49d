// Package config loads cadbridge settings from an optional YAML file,
// overlaid with CADBRIDGE__* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides; "__" separates nested keys,
// e.g. CADBRIDGE__HOST__ADDRESS.
const EnvPrefix = "CADBRIDGE__"

// Host transports.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// Journal backends.
const (
	JournalMemory = "memory"
	JournalRedis  = "redis"
)

// HostConfig selects how the bridge reaches the host, and what the reference host serves.
type HostConfig struct {
	Transport   string        `koanf:"transport"` // tcp|websocket
	Address     string        `koanf:"address"`   // tcp listen/dial address
	URL         string        `koanf:"url"`       // websocket dial URL
	Framing     string        `koanf:"framing"`   // newline|length
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Document    string        `koanf:"document"` // seed file for the reference host
}

// ChannelConfig tunes the command channel.
type ChannelConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// JournalConfig selects where committed batches are journaled.
type JournalConfig struct {
	Backend    string        `koanf:"backend"` // memory|redis
	RedisAddr  string        `koanf:"redis_addr"`
	RedisDB    int           `koanf:"redis_db"`
	Password   string        `koanf:"password"`
	Prefix     string        `koanf:"prefix"`
	MaxEntries int           `koanf:"max_entries"`
	TTL        time.Duration `koanf:"ttl"`
}

// HTTPConfig configures the HTTP relay.
type HTTPConfig struct {
	Address string `koanf:"address"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Transport string `koanf:"transport"` // stdio|sse
	Port      int    `koanf:"port"`
}

// Config is the full cadbridge configuration.
type Config struct {
	Host    HostConfig    `koanf:"host"`
	Channel ChannelConfig `koanf:"channel"`
	Log     LogConfig     `koanf:"log"`
	Metrics bool          `koanf:"metrics"`
	Journal JournalConfig `koanf:"journal"`
	HTTP    HTTPConfig    `koanf:"http"`
	MCP     MCPConfig     `koanf:"mcp"`
}

// Load merges the YAML file at path (if present) with environment overrides
// and fills defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(c *Config) {
	if c.Host.Transport == "" {
		c.Host.Transport = TransportTCP
	}
	if c.Host.Address == "" {
		c.Host.Address = "127.0.0.1:8765"
	}
	if c.Host.URL == "" {
		c.Host.URL = "ws://127.0.0.1:8766/ws"
	}
	if c.Host.Framing == "" {
		c.Host.Framing = "newline"
	}
	if c.Host.DialTimeout == 0 {
		c.Host.DialTimeout = 5 * time.Second
	}
	if c.Channel.RequestTimeout == 0 {
		c.Channel.RequestTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = JournalMemory
	}
	if c.Journal.RedisAddr == "" {
		c.Journal.RedisAddr = "localhost:6379"
	}
	if c.Journal.Prefix == "" {
		c.Journal.Prefix = "cadbridge:"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
	if c.MCP.Port == 0 {
		c.MCP.Port = 8081
	}
}

// Validate rejects unknown enum values.
func (c Config) Validate() error {
	switch c.Host.Transport {
	case TransportTCP, TransportWebSocket:
	default:
		return fmt.Errorf("host.transport %q not supported (want tcp or websocket)", c.Host.Transport)
	}
	switch c.Journal.Backend {
	case JournalMemory, JournalRedis:
	default:
		return fmt.Errorf("journal.backend %q not supported (want memory or redis)", c.Journal.Backend)
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("mcp.transport %q not supported (want stdio or sse)", c.MCP.Transport)
	}
	return nil
}
