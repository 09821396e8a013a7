package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadValidProfile(t *testing.T) {
	// Create temp directory
	tempDir := t.TempDir()

	// Create test YAML file
	content := `
source:
  name: "gradcafe"
  base_url: "https://example.com/survey/index.php"
  result_base_url: "https://example.com"

settings:
  enabled: true
  user_agent: "Test Agent"
  request_delay: 1
  timeout: 5
`

	path := filepath.Join(tempDir, "sources.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	// Load configuration
	loader := NewLoader(path)
	config, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	// Validate loaded values
	if config.Source.Name != "gradcafe" {
		t.Errorf("Expected name 'gradcafe', got '%s'", config.Source.Name)
	}
	if config.Source.BaseURL != "https://example.com/survey/index.php" {
		t.Errorf("Expected base URL 'https://example.com/survey/index.php', got '%s'", config.Source.BaseURL)
	}
	if config.Source.ResultBaseURL != "https://example.com" {
		t.Errorf("Expected result base URL 'https://example.com', got '%s'", config.Source.ResultBaseURL)
	}
	if !config.Settings.Enabled {
		t.Error("Expected source to be enabled")
	}
	if config.Settings.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", config.Settings.UserAgent)
	}
	if config.Settings.GetRequestDelay() != 1*time.Second {
		t.Errorf("Expected request delay 1s, got %v", config.Settings.GetRequestDelay())
	}
	if config.Settings.GetTimeout() != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", config.Settings.GetTimeout())
	}
}

func TestLoadProfileWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	// Minimal profile: only the base URL is given
	content := `
source:
  base_url: "https://example.com/survey/index.php"

settings:
  enabled: true
`

	path := filepath.Join(tempDir, "sources.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path)
	config, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	// Defaults should be applied
	if config.Source.Name != "gradcafe" {
		t.Errorf("Expected default name 'gradcafe', got '%s'", config.Source.Name)
	}
	if config.Source.ResultBaseURL != "https://example.com" {
		t.Errorf("Expected derived result base URL 'https://example.com', got '%s'", config.Source.ResultBaseURL)
	}
	if config.Settings.UserAgent == "" {
		t.Error("Expected default user agent to be applied")
	}
	if config.Settings.GetRequestDelay() != 2*time.Second {
		t.Errorf("Expected default request delay 2s, got %v", config.Settings.GetRequestDelay())
	}
	if config.Settings.GetTimeout() != 10*time.Second {
		t.Errorf("Expected default timeout 10s, got %v", config.Settings.GetTimeout())
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	config, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	def := Default()
	if config.Source.BaseURL != def.Source.BaseURL {
		t.Errorf("Expected default base URL '%s', got '%s'", def.Source.BaseURL, config.Source.BaseURL)
	}
	if !config.Settings.Enabled {
		t.Error("Expected default profile to be enabled")
	}
}

func TestLoadInvalidProfile(t *testing.T) {
	tempDir := t.TempDir()

	// Missing base URL should fail validation
	content := `
source:
  name: "broken"

settings:
  enabled: true
`

	path := filepath.Join(tempDir, "sources.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path)
	_, err = loader.Load()
	if err == nil {
		t.Error("Expected validation error for profile without base URL")
	}
}
