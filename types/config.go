package types

import "time"

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	BaseURL            string        `yaml:"baseURL"`
	ControlPort        int           `yaml:"controlPort"`
	PurgeDelay         time.Duration `yaml:"purgeDelay"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	UseNotify          bool          `yaml:"useNotify"`
	NotifySocket       string        `yaml:"notifySocket"`
	IngestPort         int           `yaml:"ingestPort"`
	IngestDir          string        `yaml:"ingestDir"`
	AcceptedExtensions []string      `yaml:"acceptedExtensions"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log            string
	UseConfigPath  string
	UseBaseURL     string
	UseControlPort int
	UseIngestPort  int
	UseIngestDir   string
	UseNotify      bool
	WithIngest     bool // serve only: also run the reference ingestion endpoint
}
