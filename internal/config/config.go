// Package config loads the engine's internal bootstrap configuration:
// the AList matrix paths, default sync interval, reassembly timeout, and
// the optional keystore/metrics/monitor/telemetry endpoints. This is
// deliberately narrow — spec §1 excludes CLI flag parsing, PTT wiring,
// and GUI configuration from the core's scope, and this package loads
// none of those; it is the same Load/Validate pair the teacher's own
// pkg/config uses (pkg/config/config.go, pkg/config/validation.go),
// narrowed to what the waveform engine itself needs at bootstrap.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// EngineConfig is the engine's internal bootstrap document.
type EngineConfig struct {
	Waveform  WaveformConfig  `mapstructure:"waveform"`
	Keystore  KeystoreConfig  `mapstructure:"keystore"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WaveformConfig holds the superframe/FEC bootstrap parameters (spec §3,
// §4.3, §7).
type WaveformConfig struct {
	LdpcAuthPath      string `mapstructure:"ldpc_auth_path"`
	LdpcVoicePath     string `mapstructure:"ldpc_voice_path"`
	SyncInterval      uint32 `mapstructure:"sync_interval"`
	MaxDecodeIters    int    `mapstructure:"max_decode_iters"`
	ReassemblyTimeout uint32 `mapstructure:"reassembly_timeout"` // superframes, spec §7
	LocalCallsign     string `mapstructure:"local_callsign"`
	RequireSignatures bool   `mapstructure:"require_signatures"`
}

// KeystoreConfig holds the RX public-key directory's persistence settings
// (spec §3 SessionState's public-key directory).
type KeystoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds the Prometheus exposition server settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// MonitorConfig holds the live status WebSocket broadcast settings.
type MonitorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// TelemetryConfig holds the optional external status fan-out settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
}

// LoggingConfig holds the structured logger's settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the engine bootstrap configuration from file and environment
// variables, falling back to defaults when no file is present — mirroring
// the teacher's Load (pkg/config/config.go): defaults first, then an
// optional file, then environment overrides, then validation.
func Load(configFile string) (*EngineConfig, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("sleipnir")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/sleipnir")
	}

	viper.SetEnvPrefix("SLEIPNIR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; defaults carry the engine.
		} else if os.IsNotExist(err) {
			// Explicitly named file missing is also fine.
		} else {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg EngineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("waveform.ldpc_auth_path", "data/ldpc/ldpc_auth_768_256.alist")
	viper.SetDefault("waveform.ldpc_voice_path", "data/ldpc/ldpc_voice_576_384.alist")
	viper.SetDefault("waveform.sync_interval", 5)
	viper.SetDefault("waveform.max_decode_iters", 20)
	viper.SetDefault("waveform.reassembly_timeout", 8)
	viper.SetDefault("waveform.require_signatures", false)

	viper.SetDefault("keystore.enabled", false)
	viper.SetDefault("keystore.path", "data/sleipnir-keys.db")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.host", "0.0.0.0")
	viper.SetDefault("monitor.port", 8088)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.topic_prefix", "sleipnir")
	viper.SetDefault("telemetry.client_id", "sleipnir-core")

	viper.SetDefault("logging.level", "info")
}
