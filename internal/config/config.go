package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
}

// BrowserConfig configures the headless browser used for page sessions.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ProfileDir        string        `mapstructure:"profile_dir" yaml:"profile_dir"`
}

// DetectionConfig holds the tunables of the interaction discovery engine.
type DetectionConfig struct {
	MaxHoverElements    int           `mapstructure:"max_hover_elements" yaml:"max_hover_elements"`
	MaxPopupTriggers    int           `mapstructure:"max_popup_triggers" yaml:"max_popup_triggers"`
	HoverProbeLimit     int           `mapstructure:"hover_probe_limit" yaml:"hover_probe_limit"`
	PopupProbeLimit     int           `mapstructure:"popup_probe_limit" yaml:"popup_probe_limit"`
	SettleDelay         time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	HoverActionTimeout  time.Duration `mapstructure:"hover_action_timeout" yaml:"hover_action_timeout"`
	ClickActionTimeout  time.Duration `mapstructure:"click_action_timeout" yaml:"click_action_timeout"`
	LabelMaxLength      int           `mapstructure:"label_max_length" yaml:"label_max_length"`
	PopupLabelMaxLength int           `mapstructure:"popup_label_max_length" yaml:"popup_label_max_length"`
	TopBandPx           float64       `mapstructure:"top_band_px" yaml:"top_band_px"`
	FooterCutoffRatio   float64       `mapstructure:"footer_cutoff_ratio" yaml:"footer_cutoff_ratio"`
	LoadPopupMaxButtons int           `mapstructure:"load_popup_max_buttons" yaml:"load_popup_max_buttons"`
	NavDiffMaxDeltaY    float64       `mapstructure:"nav_diff_max_delta_y" yaml:"nav_diff_max_delta_y"`
	MenuLinkCap         int           `mapstructure:"menu_link_cap" yaml:"menu_link_cap"`
	AdvancedHover       bool          `mapstructure:"advanced_hover" yaml:"advanced_hover"`
	AdvancedPopup       bool          `mapstructure:"advanced_popup" yaml:"advanced_popup"`
}

// LLMConfig selects the scenario synthesis provider.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	Model     string        `mapstructure:"model" yaml:"model"`
	OllamaURL string        `mapstructure:"ollama_url" yaml:"ollama_url"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Path    string        `mapstructure:"path" yaml:"path"`
	Expiry  time.Duration `mapstructure:"expiry" yaml:"expiry"`
}

// OutputConfig controls where feature files are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	ListenAddr        string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxConcurrentJobs int    `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.profile_dir", "")

	// -- Detection --
	v.SetDefault("detection.max_hover_elements", 25)
	v.SetDefault("detection.max_popup_triggers", 10)
	v.SetDefault("detection.hover_probe_limit", 5)
	v.SetDefault("detection.popup_probe_limit", 3)
	v.SetDefault("detection.settle_delay", "1s")
	v.SetDefault("detection.hover_action_timeout", "5s")
	v.SetDefault("detection.click_action_timeout", "25s")
	v.SetDefault("detection.label_max_length", 50)
	v.SetDefault("detection.popup_label_max_length", 100)
	v.SetDefault("detection.top_band_px", 200.0)
	v.SetDefault("detection.footer_cutoff_ratio", 0.95)
	v.SetDefault("detection.load_popup_max_buttons", 10)
	v.SetDefault("detection.nav_diff_max_delta_y", 500.0)
	v.SetDefault("detection.menu_link_cap", 10)
	v.SetDefault("detection.advanced_hover", false)
	v.SetDefault("detection.advanced_popup", false)

	// -- LLM --
	v.SetDefault("llm.provider", "claude")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "120s")

	// -- Cache --
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", ".cache/dom_cache.db")
	v.SetDefault("cache.expiry", "24h")

	// -- Output --
	v.SetDefault("output.dir", "output/features")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "bddgen")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- API --
	v.SetDefault("api.listen_addr", ":8000")
	v.SetDefault("api.max_concurrent_jobs", 2)
}

// Load reads configuration from an optional file and BDDGEN_ prefixed
// environment variables on top of the defaults. An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("BDDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	var errs []error

	d := c.Detection
	if d.MaxHoverElements <= 0 {
		errs = append(errs, errors.New("detection.max_hover_elements must be a positive integer"))
	}
	if d.MaxPopupTriggers <= 0 {
		errs = append(errs, errors.New("detection.max_popup_triggers must be a positive integer"))
	}
	if d.HoverProbeLimit < 0 || d.PopupProbeLimit < 0 {
		errs = append(errs, errors.New("detection probe limits must not be negative"))
	}
	if d.HoverActionTimeout <= 0 || d.ClickActionTimeout <= 0 {
		errs = append(errs, errors.New("detection action timeouts must be positive"))
	}
	if d.SettleDelay < 0 {
		errs = append(errs, errors.New("detection.settle_delay must not be negative"))
	}
	if d.LabelMaxLength <= 0 || d.PopupLabelMaxLength <= 0 {
		errs = append(errs, errors.New("detection label length caps must be positive integers"))
	}
	if d.FooterCutoffRatio <= 0 || d.FooterCutoffRatio > 1 {
		errs = append(errs, errors.New("detection.footer_cutoff_ratio must be in (0, 1]"))
	}
	if d.LoadPopupMaxButtons <= 0 {
		errs = append(errs, errors.New("detection.load_popup_max_buttons must be a positive integer"))
	}
	if d.MenuLinkCap <= 0 {
		errs = append(errs, errors.New("detection.menu_link_cap must be a positive integer"))
	}

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("browser.navigation_timeout must be positive"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport dimensions must be positive"))
	}
	if c.Cache.Enabled && c.Cache.Expiry <= 0 {
		errs = append(errs, errors.New("cache.expiry must be positive when the cache is enabled"))
	}
	if c.API.MaxConcurrentJobs <= 0 {
		errs = append(errs, errors.New("api.max_concurrent_jobs must be a positive integer"))
	}

	return errors.Join(errs...)
}
