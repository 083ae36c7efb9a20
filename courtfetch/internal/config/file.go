// Package config handles courtfetch configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG directories.
const AppName = "hcbot"

// DefaultPortalURL is the High Court case-status entry page.
const DefaultPortalURL = "https://hcservices.ecourts.gov.in/hcservices/main.php"

// Order selection policies.
const (
	PolicyLatest = "latest" // fetch only the most recent order
	PolicyAll    = "all"    // fetch every distinct order, newest first
)

// Config is the top-level configuration.
type Config struct {
	Portal      PortalConfig      `yaml:"portal"`
	Browser     BrowserConfig     `yaml:"browser"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Delays      DelayConfig       `yaml:"delays"`
	Retry       RetryConfig       `yaml:"retry"`
	Orders      OrdersConfig      `yaml:"orders"`
	Captcha     CaptchaConfig     `yaml:"captcha"`
	Selectors   Selectors         `yaml:"selectors"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Output      OutputConfig      `yaml:"output"`
	History     HistoryConfig     `yaml:"history"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Sinks       []SinkConfig      `yaml:"sinks"`
	HTTP        HTTPConfig        `yaml:"http"`
}

// PortalConfig points at the portal and carries the fallback court codes
// used when a case does not name its own.
type PortalConfig struct {
	URL       string `yaml:"url"`
	CourtCode string `yaml:"court_code"` // sess_state_code
	BenchCode string `yaml:"bench_code"` // court_complex_code
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote            string   `yaml:"remote"`
	Stealth           string   `yaml:"stealth"` // headless | headful
	XvfbDisplay       string   `yaml:"xvfb_display"`
	UserAgent         string   `yaml:"user_agent"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	DeviceScaleFactor float64  `yaml:"device_scale_factor"`
	ResourceBlocking  []string `yaml:"resource_blocking"` // fonts | media | stylesheets; images are never blocked
}

// TimeoutConfig bounds every wait. Page is the long default; the others are
// the short waits for specific transient conditions.
type TimeoutConfig struct {
	Page           time.Duration `yaml:"page"`
	CaptchaVisible time.Duration `yaml:"captcha_visible"`
	ImageFetch     time.Duration `yaml:"image_fetch"`
	InvalidCaptcha time.Duration `yaml:"invalid_captcha"`
	HistoryLink    time.Duration `yaml:"history_link"`
	OrderTable     time.Duration `yaml:"order_table"`
	DocumentFetch  time.Duration `yaml:"document_fetch"`
}

// DelayConfig holds settle pauses. Negative values mean "no pause".
type DelayConfig struct {
	AfterLoad     time.Duration `yaml:"after_load"`
	AfterSelect   time.Duration `yaml:"after_select"`
	BeforeCaptcha time.Duration `yaml:"before_captcha"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	BetweenCases  time.Duration `yaml:"between_cases"`
}

// RetryConfig bounds attempts per case.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// OrdersConfig selects which orders are downloaded.
type OrdersConfig struct {
	Policy string `yaml:"policy"` // latest | all
}

// CaptchaConfig tunes the OCR engine.
type CaptchaConfig struct {
	Languages []string `yaml:"languages"`
	Whitelist string   `yaml:"whitelist"`
}

// Selectors are the portal's element selectors.
type Selectors struct {
	Overlays       string `yaml:"overlays"`
	Menu           string `yaml:"menu"`
	Court          string `yaml:"court"`
	Bench          string `yaml:"bench"`
	CaseNumberMode string `yaml:"case_number_mode"`
	FilingMode     string `yaml:"filing_mode"`
	CaseType       string `yaml:"case_type"`
	CaseNumber     string `yaml:"case_number"`
	CaseYear       string `yaml:"case_year"`
	FilingNumber   string `yaml:"filing_number"`
	FilingYear     string `yaml:"filing_year"`
	CaptchaImage   string `yaml:"captcha_image"`
	CaptchaInput   string `yaml:"captcha_input"`
	Submit         string `yaml:"submit"`
	InvalidCaptcha string `yaml:"invalid_captcha_text"`
	HistoryLink    string `yaml:"history_link"`
	OrderTable     string `yaml:"order_table"`
}

// DiagnosticsConfig enables the artifact side channel.
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// OutputConfig is where fetched documents are written by the CLI.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig locates the run-history database.
type HistoryConfig struct {
	DB   string `yaml:"db"`
	Keep int    `yaml:"keep"` // runs kept after each save
}

// CatalogConfig locates the bench → case type table.
type CatalogConfig struct {
	CaseTypesFile string `yaml:"case_types_file"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// HTTPConfig configures the HTTP front end.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Orders.Policy {
	case PolicyLatest, PolicyAll:
	default:
		return fmt.Errorf("config: orders.policy must be %q or %q, got %q", PolicyLatest, PolicyAll, c.Orders.Policy)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth must be headless or headful, got %q", c.Browser.Stealth)
	}
	t := c.Timeouts
	for name, d := range map[string]time.Duration{
		"page": t.Page, "captcha_visible": t.CaptchaVisible, "image_fetch": t.ImageFetch,
		"invalid_captcha": t.InvalidCaptcha, "history_link": t.HistoryLink,
		"order_table": t.OrderTable, "document_fetch": t.DocumentFetch,
	} {
		if d < 0 {
			return fmt.Errorf("config: timeouts.%s must not be negative, got %s", name, d)
		}
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink needs a url")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}

// DataDir is $XDG_DATA_HOME/hcbot.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func (c *Config) applyDefaults() {
	if c.Portal.URL == "" {
		c.Portal.URL = DefaultPortalURL
	}
	if c.Portal.CourtCode == "" {
		c.Portal.CourtCode = "1"
	}
	if c.Portal.BenchCode == "" {
		c.Portal.BenchCode = "1"
	}

	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1920
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 1080
	}
	if c.Browser.DeviceScaleFactor <= 0 {
		c.Browser.DeviceScaleFactor = 2
	}

	durationDefault(&c.Timeouts.Page, 60*time.Second)
	durationDefault(&c.Timeouts.CaptchaVisible, 8*time.Second)
	durationDefault(&c.Timeouts.ImageFetch, 15*time.Second)
	durationDefault(&c.Timeouts.InvalidCaptcha, 3*time.Second)
	durationDefault(&c.Timeouts.HistoryLink, 10*time.Second)
	durationDefault(&c.Timeouts.OrderTable, 20*time.Second)
	durationDefault(&c.Timeouts.DocumentFetch, 60*time.Second)

	durationDefault(&c.Delays.AfterLoad, 2*time.Second)
	durationDefault(&c.Delays.AfterSelect, time.Second)
	durationDefault(&c.Delays.BeforeCaptcha, 500*time.Millisecond)
	durationDefault(&c.Delays.RetryBackoff, 2*time.Second)
	durationDefault(&c.Delays.BetweenCases, time.Second)

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Orders.Policy == "" {
		c.Orders.Policy = PolicyLatest
	}

	if len(c.Captcha.Languages) == 0 {
		c.Captcha.Languages = []string{"eng"}
	}
	if c.Captcha.Whitelist == "" {
		c.Captcha.Whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	}

	c.Selectors.applyDefaults()

	if c.Diagnostics.Dir == "" {
		c.Diagnostics.Dir = filepath.Join(DataDir(), "debug_artifacts")
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "orders"
	}
	if c.History.DB == "" {
		c.History.DB = filepath.Join(DataDir(), "history.db")
	}
	if c.History.Keep <= 0 {
		c.History.Keep = 20
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8480"
	}
}

func (s *Selectors) applyDefaults() {
	stringDefault(&s.Overlays, ".modal, .alert, #bs_alert")
	stringDefault(&s.Menu, "#leftPaneMenuCS")
	stringDefault(&s.Court, "#sess_state_code")
	stringDefault(&s.Bench, "#court_complex_code")
	stringDefault(&s.CaseNumberMode, "#CScaseNumber")
	stringDefault(&s.FilingMode, "#CSfilingNumber")
	stringDefault(&s.CaseType, "#case_type")
	stringDefault(&s.CaseNumber, "#search_case_no")
	stringDefault(&s.CaseYear, "#rgyear")
	stringDefault(&s.FilingNumber, "#filing_no")
	stringDefault(&s.FilingYear, "#filyear")
	stringDefault(&s.CaptchaImage, "#captcha_image")
	stringDefault(&s.CaptchaInput, "#captcha")
	stringDefault(&s.Submit, "#goResetDiv input[value='Go']")
	stringDefault(&s.InvalidCaptcha, "Invalid Captcha")
	stringDefault(&s.HistoryLink, "#dispTable a[onclick*='viewHistory']")
	stringDefault(&s.OrderTable, ".order_table")
}

// durationDefault fills zero durations. Negative values are kept; Validate
// rejects them for timeouts, and for delays they mean no pause.
func durationDefault(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func stringDefault(s *string, def string) {
	if *s == "" {
		*s = def
	}
}
