package sources

// SourceConfig represents a complete scrape source configuration
type SourceConfig struct {
	Source   SourceInfo     `yaml:"source"`
	Settings SourceSettings `yaml:"settings"`
}

// SourceInfo contains basic source information
type SourceInfo struct {
	Name          string `yaml:"name"`
	BaseURL       string `yaml:"base_url"`
	ResultBaseURL string `yaml:"result_base_url"`
}

// SourceSettings contains fetch behavior settings
type SourceSettings struct {
	Enabled      bool   `yaml:"enabled"`
	UserAgent    string `yaml:"user_agent"`
	RequestDelay int    `yaml:"request_delay"` // seconds
	Timeout      int    `yaml:"timeout"`       // seconds
}
