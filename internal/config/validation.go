package config

import "fmt"

// validate checks the engine bootstrap document for internally consistent
// values, matching the teacher's separate validation.go (pkg/config/validation.go).
func validate(cfg *EngineConfig) error {
	if cfg.Waveform.LdpcAuthPath == "" {
		return fmt.Errorf("waveform.ldpc_auth_path is required")
	}
	if cfg.Waveform.LdpcVoicePath == "" {
		return fmt.Errorf("waveform.ldpc_voice_path is required")
	}
	if cfg.Waveform.SyncInterval == 0 || cfg.Waveform.SyncInterval > 255 {
		return fmt.Errorf("waveform.sync_interval must be in 1..255 (spec §6)")
	}
	if cfg.Waveform.MaxDecodeIters < 0 {
		return fmt.Errorf("waveform.max_decode_iters must be non-negative")
	}
	if cfg.Waveform.ReassemblyTimeout == 0 {
		return fmt.Errorf("waveform.reassembly_timeout must be positive (spec §7)")
	}

	if cfg.Keystore.Enabled && cfg.Keystore.Path == "" {
		return fmt.Errorf("keystore.path is required when keystore is enabled")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535")
		}
		if cfg.Metrics.Path == "" {
			return fmt.Errorf("metrics.path is required when metrics is enabled")
		}
	}

	if cfg.Monitor.Enabled {
		if cfg.Monitor.Port <= 0 || cfg.Monitor.Port > 65535 {
			return fmt.Errorf("monitor.port must be between 1 and 65535")
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Broker == "" {
		return fmt.Errorf("telemetry.broker is required when telemetry is enabled")
	}

	return nil
}
