// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the top-level static configuration.
// Maps to the `enricher:` root key in YAML; environment variables override
// file values through the key replacer (enricher.log.level → ENRICHER_LOG_LEVEL).
type Config struct {
	Listen      EndpointConfig `mapstructure:"listen" yaml:"listen"`
	Destination EndpointConfig `mapstructure:"destination" yaml:"destination"`
	Enrich      EnrichConfig   `mapstructure:"enrich" yaml:"enrich"`
	Buffer      BufferConfig   `mapstructure:"buffer" yaml:"buffer"`
	MTU         MTUConfig      `mapstructure:"mtu" yaml:"mtu"`
	Stats       StatsConfig    `mapstructure:"stats" yaml:"stats"`
	Debug       DebugConfig    `mapstructure:"debug" yaml:"debug"`
	Tuning      TuningConfig   `mapstructure:"tuning" yaml:"tuning"`
	Metrics     MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig      `mapstructure:"log" yaml:"log"`
}

// EndpointConfig is a UDP host/port pair.
type EndpointConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

func (e EndpointConfig) Addr() string {
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port))
}

// EnrichConfig describes the payload rewrite.
type EnrichConfig struct {
	// TargetAS is written over every zero AS field in matching packets.
	TargetAS uint32 `mapstructure:"target_as" yaml:"target_as"`
	// IPv4Prefixes are the three-octet address markers that make a packet
	// eligible for enrichment.
	IPv4Prefixes []Prefix `mapstructure:"ipv4_prefixes" yaml:"ipv4_prefixes"`
	// IPv6Prefix is the four-byte address marker checked alongside the
	// IPv4 set.
	IPv6Prefix Prefix `mapstructure:"ipv6_prefix" yaml:"ipv6_prefix"`
}

// BufferConfig bounds the relay buffer between receiver and sender.
type BufferConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// MTUConfig controls the transmission size ceiling.
type MTUConfig struct {
	// MaxPacketSize is the initial ceiling; the sender shrinks it on
	// EMSGSIZE down to the 576-byte floor.
	MaxPacketSize int `mapstructure:"max_packet_size" yaml:"max_packet_size"`
	// Probe sends padded test datagrams to the destination at startup to
	// pick a ceiling below the discovered path MTU.
	Probe bool `mapstructure:"probe" yaml:"probe"`
}

// StatsConfig controls how often the statistics block is written.
type StatsConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	PacketInterval int           `mapstructure:"packet_interval" yaml:"packet_interval"`
}

// MarshalYAML renders the interval in the syntax Load accepts, not as
// nanoseconds.
func (s StatsConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"interval":        s.Interval.String(),
		"packet_interval": s.PacketInterval,
	}, nil
}

// DebugConfig controls packet sampling during warm-up.
type DebugConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxPackets int           `mapstructure:"max_packets" yaml:"max_packets"`
	Window     time.Duration `mapstructure:"window" yaml:"window"`
}

// MarshalYAML renders the window in the syntax Load accepts.
func (d DebugConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"enabled":     d.Enabled,
		"max_packets": d.MaxPackets,
		"window":      d.Window.String(),
	}, nil
}

// TuningConfig gates best-effort process and kernel tuning at startup.
type TuningConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig contains logging settings. File is the path the statistics
// viewers read; an empty value disables the file appender.
type LogConfig struct {
	Level        string `mapstructure:"level" yaml:"level"`
	ConsoleLevel string `mapstructure:"console_level" yaml:"console_level"`
	File         string `mapstructure:"file" yaml:"file"`
	MaxSizeMB    int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups   int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress     bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultLogFile is shared between the daemon and the log viewers.
const DefaultLogFile = "/var/log/ipfix-enricher/ipfix-enricher.log"

// configRoot is the wrapper matching the YAML structure `enricher: ...`.
type configRoot struct {
	Enricher Config `mapstructure:"enricher"`
}

// Load reads configuration from path. An empty path yields the compiled
// defaults, which reproduce the fixed production setup.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable overrides. The `enricher.` key prefix maps to
	// ENRICHER_ via the key replacer (e.g. enricher.log.level → ENRICHER_LOG_LEVEL).
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		StringToPrefixHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Enricher

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults reproduces the fixed constants of the original deployment.
// All keys use the "enricher." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("enricher.listen.host", "0.0.0.0")
	v.SetDefault("enricher.listen.port", 9996)
	v.SetDefault("enricher.destination.host", "185.54.81.20")
	v.SetDefault("enricher.destination.port", 9996)

	v.SetDefault("enricher.enrich.target_as", 202032)
	v.SetDefault("enricher.enrich.ipv4_prefixes",
		[]string{"185.54.80", "185.54.81", "185.54.82", "185.54.83"})
	v.SetDefault("enricher.enrich.ipv6_prefix", "2a02:4460")

	v.SetDefault("enricher.buffer.capacity", 20000)

	v.SetDefault("enricher.mtu.max_packet_size", 1400)
	v.SetDefault("enricher.mtu.probe", false)

	v.SetDefault("enricher.stats.interval", "30s")
	v.SetDefault("enricher.stats.packet_interval", 5000)

	v.SetDefault("enricher.debug.enabled", true)
	v.SetDefault("enricher.debug.max_packets", 10)
	v.SetDefault("enricher.debug.window", "120s")

	v.SetDefault("enricher.tuning.enabled", true)

	v.SetDefault("enricher.metrics.enabled", false)
	v.SetDefault("enricher.metrics.listen", ":9101")
	v.SetDefault("enricher.metrics.path", "/metrics")

	v.SetDefault("enricher.log.level", "debug")
	v.SetDefault("enricher.log.console_level", "critical")
	v.SetDefault("enricher.log.file", DefaultLogFile)
	v.SetDefault("enricher.log.max_size_mb", 10)
	v.SetDefault("enricher.log.max_backups", 5)
	v.SetDefault("enricher.log.compress", false)
}

// Validate checks invariants the relay depends on.
func (cfg *Config) Validate() error {
	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("invalid listen.port: %d", cfg.Listen.Port)
	}
	if net.ParseIP(cfg.Listen.Host) == nil {
		return fmt.Errorf("invalid listen.host: %q", cfg.Listen.Host)
	}
	if cfg.Destination.Port < 1 || cfg.Destination.Port > 65535 {
		return fmt.Errorf("invalid destination.port: %d", cfg.Destination.Port)
	}
	if cfg.Destination.Host == "" {
		return fmt.Errorf("destination.host is required")
	}

	if cfg.Enrich.TargetAS == 0 {
		return fmt.Errorf("enrich.target_as must be non-zero")
	}
	if len(cfg.Enrich.IPv4Prefixes) == 0 {
		return fmt.Errorf("enrich.ipv4_prefixes is required")
	}
	for _, p := range cfg.Enrich.IPv4Prefixes {
		if len(p) != 3 {
			return fmt.Errorf("enrich.ipv4_prefixes entry %q must be 3 octets", p)
		}
	}
	if len(cfg.Enrich.IPv6Prefix) != 4 {
		return fmt.Errorf("enrich.ipv6_prefix %q must be 4 bytes", cfg.Enrich.IPv6Prefix)
	}

	if cfg.Buffer.Capacity <= 0 {
		return fmt.Errorf("buffer.capacity must be positive")
	}

	if cfg.MTU.MaxPacketSize < 576 || cfg.MTU.MaxPacketSize > 65535 {
		return fmt.Errorf("mtu.max_packet_size %d out of range [576, 65535]", cfg.MTU.MaxPacketSize)
	}

	if cfg.Stats.Interval <= 0 {
		return fmt.Errorf("stats.interval must be positive")
	}
	if cfg.Stats.PacketInterval <= 0 {
		return fmt.Errorf("stats.packet_interval must be positive")
	}

	if cfg.Debug.Enabled {
		if cfg.Debug.MaxPackets <= 0 {
			return fmt.Errorf("debug.max_packets must be positive")
		}
		if cfg.Debug.Window <= 0 {
			return fmt.Errorf("debug.window must be positive")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "critical": true,
	}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug/info/warning/error/critical)", cfg.Log.Level)
	}
	if !validLevels[cfg.Log.ConsoleLevel] {
		return fmt.Errorf("invalid log.console_level: %s", cfg.Log.ConsoleLevel)
	}
	if cfg.Log.File != "" && cfg.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be positive")
	}

	return nil
}

// LogFileOrDefault resolves the log path shared with the viewer commands.
func (cfg *Config) LogFileOrDefault() string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return DefaultLogFile
}

// Exists reports whether path names a readable file, used to decide
// whether the default config location should be loaded.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
