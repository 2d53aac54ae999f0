// config.go: loads and holds the application settings
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FetchSettings controls outbound HTTP politeness.
type FetchSettings struct {
	UserAgentContact string        `yaml:"useragentcontact"` // Contact URL embedded in the crawler User-Agent
	MinDomainDelay   time.Duration `yaml:"mindomaindelay"`   // Minimum delay between requests to one domain
	AssetDelay       time.Duration `yaml:"assetdelay"`       // Delay between per-asset fetches in a run
	Timeout          time.Duration `yaml:"timeout"`          // Per-request HTTP timeout
	GlobalRate       float64       `yaml:"globalrate"`       // Requests per second budget across all domains
}

// SourceConfig holds per-source toggles and limits.
type SourceConfig struct {
	Enabled bool `yaml:"enabled"`
	MaxTaxa int  `yaml:"maxtaxa"` // Upper bound on taxa discovered per run
}

// SourcesSettings holds configuration for every registered source.
type SourcesSettings struct {
	IOSPE       SourceConfig `yaml:"iospe"`
	Singapore   SourceConfig `yaml:"singapore"`
	GBIF        SourceConfig `yaml:"gbif"`
	INaturalist SourceConfig `yaml:"inaturalist"`
}

// SQLiteSettings holds SQLite output settings.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings holds MySQL output settings.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings selects and configures the record store.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool `yaml:"debug"` // Enable debug logging

	Main struct {
		Name string `yaml:"name"` // Instance name, also used in the User-Agent
	} `yaml:"main"`

	Fetch   FetchSettings   `yaml:"fetch"`
	Sources SourcesSettings `yaml:"sources"`
	Output  OutputSettings  `yaml:"output"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the current settings instance, or nil if Load has not run.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the current settings instance. Intended for tests.
func SetSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default configuration to the first default config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(configPaths[0], 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaultConfig, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error getting user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "orchidnet-go"),
		"/etc/orchidnet-go",
	}, nil
}
