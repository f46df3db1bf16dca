package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	// Verify each default value explicitly
	// This serves as living documentation of the defaults
	t.Run("default OutputDir is mirror", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "mirror" {
			t.Errorf("expected OutputDir to be 'mirror', got '%s'", cfg.OutputDir)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxPages is 50", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 50 {
			t.Errorf("expected MaxPages to be 50, got %d", cfg.MaxPages)
		}
	})

	t.Run("default MaxDepth is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != -1 {
			t.Errorf("expected MaxDepth to be -1, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default CrawlDelay is 500ms", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != 500*time.Millisecond {
			t.Errorf("expected CrawlDelay to be 500ms, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default RepairBackup is enabled", func(t *testing.T) {
		t.Parallel()
		if !cfg.RepairBackup {
			t.Error("expected RepairBackup to be true")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration.
	// Tests can modify specific fields to test validation rules.
	validConfig := func() *Config {
		return &Config{
			Targets:   []string{"https://example.com"},
			Timeout:   30 * time.Second,
			BatchSize: 4,
		}
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("multiple targets is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = []string{"https://a.example.com", "https://b.example.com"}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("page list without targets is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = nil
		cfg.PageURLs = []string{"https://example.com/about"}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("local file without targets is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = nil
		cfg.LocalFile = "page.html"

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty targets returns ErrNoTarget", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = []string{}

		err := cfg.Validate()
		if !errors.Is(err, ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("zero timeout returns ErrInvalidTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Timeout = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})

	t.Run("negative timeout returns ErrInvalidTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Timeout = -1 * time.Second

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})

	t.Run("zero batch size returns ErrInvalidBatchSize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.BatchSize = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
	})

	t.Run("json and markdown both enabled returns ErrConflictingReportFormats", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true
		cfg.MarkdownReport = true

		err := cfg.Validate()
		if !errors.Is(err, ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("json only is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("negative crawl delay returns ErrInvalidCrawlDelay", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.CrawlDelay = -1 * time.Second

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidCrawlDelay) {
			t.Errorf("expected ErrInvalidCrawlDelay, got %v", err)
		}
	})

	t.Run("negative max body size returns ErrInvalidMaxBodySize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxBodySize = -1

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidMaxBodySize) {
			t.Errorf("expected ErrInvalidMaxBodySize, got %v", err)
		}
	})

	t.Run("replacement URL and fallback page conflict", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ReplacementURL = "https://example.com"
		cfg.FallbackPage = "index.html"

		err := cfg.Validate()
		if !errors.Is(err, ErrConflictingRepairTargets) {
			t.Errorf("expected ErrConflictingRepairTargets, got %v", err)
		}
	})
}

// TestFileGetSiteConfig tests the GetSiteConfig method.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				MaxPages: 25,
				Cookie:   "default_cookie=abc",
			},
			Sites: map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.example.com")
		if cfg.MaxPages != 25 {
			t.Errorf("expected max pages 25, got %d", cfg.MaxPages)
		}
		if cfg.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("returns site-specific config", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				MaxPages: 25,
				Cookie:   "default_cookie=abc",
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					MaxPages: 100,
					Cookie:   "session=xyz",
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.MaxPages != 100 {
			t.Errorf("expected max pages 100, got %d", cfg.MaxPages)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("merges headers from defaults and site", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Headers: map[string]string{
					"X-Default": "value1",
				},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Headers: map[string]string{
						"X-Custom": "value2",
					},
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["X-Default"] != "value1" {
			t.Errorf("expected default header, got %v", cfg.Headers)
		}
		if cfg.Headers["X-Custom"] != "value2" {
			t.Errorf("expected custom header, got %v", cfg.Headers)
		}
	})

	t.Run("site headers override default headers", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Headers: map[string]string{
					"Authorization": "default-token",
				},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Headers: map[string]string{
						"Authorization": "site-token",
					},
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["Authorization"] != "site-token" {
			t.Errorf("expected site token to override, got %q", cfg.Headers["Authorization"])
		}
	})

	t.Run("site ignore patterns override defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				IgnorePatterns: []string{"/default/*"},
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					IgnorePatterns: []string{"/admin/*"},
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("expected site ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})

	t.Run("site delay overrides default", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				Delay: Duration(500 * time.Millisecond),
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Delay: Duration(2 * time.Second),
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if time.Duration(cfg.Delay) != 2*time.Second {
			t.Errorf("expected 2s delay, got %v", time.Duration(cfg.Delay))
		}
	})

	t.Run("zero max pages uses default", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				MaxPages: 25,
			},
			Sites: map[string]SiteConfig{
				"example.com": {
					Cookie: "session=abc", // no page cap specified
				},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.MaxPages != 25 {
			t.Errorf("expected default max pages 25, got %d", cfg.MaxPages)
		}
		if cfg.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				MaxPages: 25,
			},
		}

		cfg := file.GetSiteConfig("any.example.com")
		if cfg.MaxPages != 25 {
			t.Errorf("expected max pages 25, got %d", cfg.MaxPages)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.webmirror")
		if err == nil {
			t.Fatal("expected error for non-existent file")
		}
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".webmirror")

		content := `defaults:
  maxPages: 25
  cookie: "default=abc"
sites:
  example.com:
    maxPages: 100
    delay: 2s
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.MaxPages != 25 {
			t.Errorf("expected default max pages 25, got %d", cfg.Defaults.MaxPages)
		}
		if cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Defaults.Cookie)
		}

		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.MaxPages != 100 {
			t.Errorf("expected site max pages 100, got %d", site.MaxPages)
		}
		if time.Duration(site.Delay) != 2*time.Second {
			t.Errorf("expected site delay 2s, got %v", time.Duration(site.Delay))
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if len(site.IgnorePatterns) != 1 {
			t.Errorf("expected 1 ignore pattern, got %d", len(site.IgnorePatterns))
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".webmirror")

		content := `invalid: yaml: content: [}`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".webmirror")

		content := `defaults:
  maxPages: 25
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "custom.yaml")

		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		result := FindConfigFile(configPath)
		if result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		result := FindConfigFile("/nonexistent/path/config.yaml")
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("returns empty when no config found", func(_ *testing.T) {
		result := FindConfigFile("")
		// This may or may not find a config depending on the system
		// Just ensure it doesn't panic
		_ = result
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	t.Run("XDGDataDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGDataDir()
		if dir == "" {
			t.Error("expected non-empty XDG data dir")
		}
	})

	t.Run("XDGConfigDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGConfigDir()
		if dir == "" {
			t.Error("expected non-empty XDG config dir")
		}
	})

	t.Run("XDGCacheDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGCacheDir()
		if dir == "" {
			t.Error("expected non-empty XDG cache dir")
		}
	})
}
