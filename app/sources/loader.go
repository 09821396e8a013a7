package sources

import (
	"fmt"
	"log"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of the scrape source profile
type Loader struct {
	path string
}

// NewLoader creates a new source profile loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the source profile file. A missing file yields the built-in
// default profile so the worker can run without any local configuration.
func (l *Loader) Load() (*SourceConfig, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		log.Printf("Source profile %s not found, using built-in default", l.path)
		return Default(), nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config)

	if err := l.validate(&config); err != nil {
		return nil, fmt.Errorf("invalid source profile %s: %w", l.path, err)
	}

	log.Printf("Loaded source profile from %s", l.path)
	return &config, nil
}

// Default returns the built-in source profile
func Default() *SourceConfig {
	return &SourceConfig{
		Source: SourceInfo{
			Name:          "gradcafe",
			BaseURL:       "https://www.thegradcafe.com/survey/index.php",
			ResultBaseURL: "https://www.thegradcafe.com",
		},
		Settings: SourceSettings{
			Enabled:      true,
			UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			RequestDelay: 2,
			Timeout:      10,
		},
	}
}

// setDefaults applies default values to the configuration
func (l *Loader) setDefaults(config *SourceConfig) {
	def := Default()
	if config.Source.Name == "" {
		config.Source.Name = def.Source.Name
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = def.Settings.UserAgent
	}
	if config.Settings.RequestDelay == 0 {
		config.Settings.RequestDelay = def.Settings.RequestDelay
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = def.Settings.Timeout
	}
	if config.Source.ResultBaseURL == "" {
		if u, err := url.Parse(config.Source.BaseURL); err == nil && u.Host != "" {
			config.Source.ResultBaseURL = u.Scheme + "://" + u.Host
		}
	}
}

// validate validates the configuration
func (l *Loader) validate(config *SourceConfig) error {
	if config.Source.BaseURL == "" {
		return fmt.Errorf("source base URL is required")
	}
	if config.Source.ResultBaseURL == "" {
		return fmt.Errorf("source result base URL is required")
	}
	if config.Settings.RequestDelay < 0 {
		return fmt.Errorf("request delay must be non-negative")
	}
	if config.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}
