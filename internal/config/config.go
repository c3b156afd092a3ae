// File: internal/config/config.go
package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported browser driver names.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// Config holds the entire application configuration. It is built once at
// process start and handed to every component that needs it.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	App         AppConfig         `mapstructure:"app" yaml:"app"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser sessions the harness drives.
type BrowserConfig struct {
	Driver          string         `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int            `mapstructure:"concurrency" yaml:"concurrency"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
}

// ViewportConfig is the initial window size of a browser session.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// AppConfig locates the application under test.
type AppConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath  string `mapstructure:"login_path" yaml:"login_path"`
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`
}

// CredentialsConfig carries the account for each test role. Values are layered
// by viper: environment override, then config file, then built-in default.
type CredentialsConfig struct {
	Admin AccountConfig `mapstructure:"admin" yaml:"admin"`
	User  AccountConfig `mapstructure:"user" yaml:"user"`
}

// AccountConfig is a username/password pair.
type AccountConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// TimeoutsConfig bounds every wait the harness performs.
type TimeoutsConfig struct {
	Element      time.Duration `mapstructure:"element" yaml:"element"`
	Probe        time.Duration `mapstructure:"probe" yaml:"probe"`
	ErrorProbe   time.Duration `mapstructure:"error_probe" yaml:"error_probe"`
	Navigation   time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Assertion    time.Duration `mapstructure:"assertion" yaml:"assertion"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Request      time.Duration `mapstructure:"request" yaml:"request"`
}

// ArtifactsConfig controls the write-only side outputs of a run.
type ArtifactsConfig struct {
	Dir         string   `mapstructure:"dir" yaml:"dir"`
	Screenshots string   `mapstructure:"screenshots" yaml:"screenshots"`
	Trace       bool     `mapstructure:"trace" yaml:"trace"`
	Reports     []string `mapstructure:"reports" yaml:"reports"`
}

// DatabaseConfig holds the optional run-history database connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ValidationError aggregates every problem found in a configuration.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "config validation failed: " + strings.Join(e.Errors, "; ")
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static, so this only fires on a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "hrmcheck")
	v.SetDefault("logger.log_file", "hrmcheck.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)

	// -- Application --
	v.SetDefault("app.base_url", "https://opensource-demo.orangehrmlive.com/web")
	v.SetDefault("app.login_path", "/index.php/auth/login")
	v.SetDefault("app.api_base_url", "")

	// -- Credentials --
	v.SetDefault("credentials.admin.username", "Admin")
	v.SetDefault("credentials.admin.password", "admin123")
	v.SetDefault("credentials.user.username", "user")
	v.SetDefault("credentials.user.password", "user123")

	// -- Timeouts --
	v.SetDefault("timeouts.element", "10s")
	v.SetDefault("timeouts.probe", "5s")
	v.SetDefault("timeouts.error_probe", "3s")
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.assertion", "5s")
	v.SetDefault("timeouts.poll_interval", "100ms")
	v.SetDefault("timeouts.request", "30s")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "test-results")
	v.SetDefault("artifacts.screenshots", "screenshots")
	v.SetDefault("artifacts.trace", true)
	v.SetDefault("artifacts.reports", []string{"html", "junit"})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bare environment names kept for compatibility with existing CI setups.
	_ = v.BindEnv("credentials.admin.username", "ADMIN_USER")
	_ = v.BindEnv("credentials.admin.password", "ADMIN_PASS")
	_ = v.BindEnv("credentials.user.username", "USER_USER")
	_ = v.BindEnv("credentials.user.password", "USER_PASS")
	_ = v.BindEnv("app.base_url", "HRMCHECK_APP_BASE_URL", "BASE_URL")
	_ = v.BindEnv("app.api_base_url", "HRMCHECK_APP_API_BASE_URL", "API_BASE_URL")
	_ = v.BindEnv("database.url", "HRMCHECK_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// APIBaseURL returns the API base URL, falling back to the application base URL.
func (c *Config) APIBaseURL() string {
	if c.App.APIBaseURL != "" {
		return c.App.APIBaseURL
	}
	return c.App.BaseURL
}

// Validate checks the configuration for required fields and sane values.
// Credentials are deliberately not checked here; a missing account is only an
// error for the role that is actually requested.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		problems = append(problems, fmt.Sprintf("logger.level %q is not a valid level", c.Logger.Level))
	}

	switch c.Browser.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		problems = append(problems, fmt.Sprintf("browser.driver %q is not supported", c.Browser.Driver))
	}
	if c.Browser.Concurrency < 1 {
		problems = append(problems, "browser.concurrency must be a positive integer")
	}

	if err := validateURL(c.App.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("app.base_url: %v", err))
	}
	if c.App.APIBaseURL != "" {
		if err := validateURL(c.App.APIBaseURL); err != nil {
			problems = append(problems, fmt.Sprintf("app.api_base_url: %v", err))
		}
	}

	timeouts := map[string]time.Duration{
		"timeouts.element":       c.Timeouts.Element,
		"timeouts.probe":         c.Timeouts.Probe,
		"timeouts.error_probe":   c.Timeouts.ErrorProbe,
		"timeouts.navigation":    c.Timeouts.Navigation,
		"timeouts.assertion":     c.Timeouts.Assertion,
		"timeouts.poll_interval": c.Timeouts.PollInterval,
		"timeouts.request":       c.Timeouts.Request,
	}
	for _, key := range slices.Sorted(maps.Keys(timeouts)) {
		if timeouts[key] <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration", key))
		}
	}

	for _, format := range c.Artifacts.Reports {
		switch format {
		case "html", "junit", "json":
		default:
			problems = append(problems, fmt.Sprintf("artifacts.reports: unknown format %q", format))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing")
	}
	return nil
}
