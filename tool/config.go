package tool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/kbupload/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		BaseURL:            "http://localhost:1111", // where the ingestion backend listens by default
		ControlPort:        53319,
		PurgeDelay:         2 * time.Second,
		RequestTimeout:     DefaultTimeout,
		UseNotify:          false,
		NotifySocket:       "/tmp/kbupload-notify.sock",
		IngestPort:         1111,
		IngestDir:          "tmp/library",
		AcceptedExtensions: append([]string(nil), AcceptedExtensions...),
	}
}

// LoadConfig reads path (or ConfigPath) and fills zero fields from the defaults.
// A missing file is created with default values.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %w", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyConfigDefaults(&cfg)

	if _, err := NormalizeBaseURL(cfg.BaseURL); err != nil {
		return cfg, fmt.Errorf("invalid baseURL in %s: %w", path, err)
	}

	CurrentConfig = cfg
	return cfg, nil
}

// applyConfigDefaults fills fields that a hand-written file left empty.
func applyConfigDefaults(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ControlPort <= 0 {
		cfg.ControlPort = def.ControlPort
	}
	if cfg.PurgeDelay <= 0 {
		cfg.PurgeDelay = def.PurgeDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.NotifySocket == "" {
		cfg.NotifySocket = def.NotifySocket
	}
	if cfg.IngestPort <= 0 {
		cfg.IngestPort = def.IngestPort
	}
	if cfg.IngestDir == "" {
		cfg.IngestDir = def.IngestDir
	}
	if len(cfg.AcceptedExtensions) == 0 {
		cfg.AcceptedExtensions = def.AcceptedExtensions
	}
}

// ApplyFlagOverrides lets CLI flags win over the config file.
func ApplyFlagOverrides(cfg *types.AppConfig, flags types.Config) {
	if flags.UseBaseURL != "" {
		cfg.BaseURL = flags.UseBaseURL
	}
	if flags.UseControlPort > 0 {
		cfg.ControlPort = flags.UseControlPort
	}
	if flags.UseIngestPort > 0 {
		cfg.IngestPort = flags.UseIngestPort
	}
	if flags.UseIngestDir != "" {
		cfg.IngestDir = flags.UseIngestDir
	}
	if flags.UseNotify {
		cfg.UseNotify = true
	}
	CurrentConfig = *cfg
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
