package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Browser drivers
const (
	BrowserChromedp = "chromedp"
	BrowserStatic   = "static"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Browser    BrowserConfig    `yaml:"browser"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Hosting    HostingConfig    `yaml:"hosting"`
	Profiles   DatabaseConfig   `yaml:"profiles"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds job manager configuration
type WorkerConfig struct {
	// Concurrency caps the number of pipelines running at once. Zero means unlimited.
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Retention         time.Duration `yaml:"retention"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// BrowserConfig holds page driver configuration
type BrowserConfig struct {
	Driver            string        `yaml:"driver"`
	Headless          bool          `yaml:"headless"`
	ExecPath          string        `yaml:"exec_path"`
	UserAgent         string        `yaml:"user_agent"`
	WindowWidth       int           `yaml:"window_width"`
	WindowHeight      int           `yaml:"window_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	GalleryDelay      time.Duration `yaml:"gallery_delay"`
	TriggerWait       time.Duration `yaml:"trigger_wait"`
}

// ExtractionConfig holds listing extraction configuration
type ExtractionConfig struct {
	// SiteProfilePath optionally points at a YAML file overriding the default site profile
	SiteProfilePath string `yaml:"site_profile_path"`
	MaxPhotos       int    `yaml:"max_photos"`
}

// HostingConfig holds static-hosting API configuration
type HostingConfig struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UploadTimeout  time.Duration `yaml:"upload_timeout"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PollAttempts   int           `yaml:"poll_attempts"`
}

// DatabaseConfig holds profile store connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds completion notifier configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RateLimitConfig limits job submissions per user
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// Load reads and parses the configuration file, then fills defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero values with the built-in pipeline constants
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Worker.JobTimeout == 0 {
		c.Worker.JobTimeout = 5 * time.Minute
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 30 * time.Second
	}
	if c.Worker.Retention == 0 {
		c.Worker.Retention = time.Hour
	}
	if c.Worker.SweepInterval == 0 {
		c.Worker.SweepInterval = 5 * time.Minute
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}

	if c.Browser.Driver == "" {
		c.Browser.Driver = BrowserChromedp
	}
	if c.Browser.WindowWidth == 0 {
		c.Browser.WindowWidth = 1920
	}
	if c.Browser.WindowHeight == 0 {
		c.Browser.WindowHeight = 1080
	}
	if c.Browser.NavigationTimeout == 0 {
		c.Browser.NavigationTimeout = 60 * time.Second
	}
	if c.Browser.SettleDelay == 0 {
		c.Browser.SettleDelay = 3 * time.Second
	}
	if c.Browser.GalleryDelay == 0 {
		c.Browser.GalleryDelay = 2 * time.Second
	}
	if c.Browser.TriggerWait == 0 {
		c.Browser.TriggerWait = 2 * time.Second
	}

	if c.Extraction.MaxPhotos == 0 {
		c.Extraction.MaxPhotos = 20
	}

	if c.Hosting.APIBaseURL == "" {
		c.Hosting.APIBaseURL = "https://api.netlify.com/api/v1"
	}
	if c.Hosting.RequestTimeout == 0 {
		c.Hosting.RequestTimeout = 30 * time.Second
	}
	if c.Hosting.UploadTimeout == 0 {
		c.Hosting.UploadTimeout = 60 * time.Second
	}
	if c.Hosting.PollTimeout == 0 {
		c.Hosting.PollTimeout = 15 * time.Second
	}
	if c.Hosting.PollInterval == 0 {
		c.Hosting.PollInterval = 2 * time.Second
	}
	if c.Hosting.PollAttempts == 0 {
		c.Hosting.PollAttempts = 15
	}

	if c.Profiles.Driver == "" {
		c.Profiles.Driver = "sqlite"
	}
	if c.Profiles.Driver == "sqlite" && c.Profiles.Database == "" {
		c.Profiles.Database = "profiles.db"
	}

	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 3
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Worker.Concurrency < 0 {
		return fmt.Errorf("worker concurrency must not be negative")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.Retention <= 0 || c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker retention and sweep_interval must be greater than 0")
	}

	switch c.Browser.Driver {
	case BrowserChromedp, BrowserStatic:
	default:
		return fmt.Errorf("unsupported browser driver: %q", c.Browser.Driver)
	}

	if c.Hosting.PollAttempts <= 0 {
		return fmt.Errorf("hosting poll_attempts must be greater than 0")
	}

	if err := c.validateProfiles(); err != nil {
		return err
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit requests_per_minute must be greater than 0")
	}

	return nil
}

func (c *Config) validateProfiles() error {
	switch c.Profiles.Driver {
	case "sqlite":
		if c.Profiles.Database == "" {
			return fmt.Errorf("profiles database path is required")
		}
	case "postgres":
		if c.Profiles.Host == "" {
			return fmt.Errorf("profiles database host is required")
		}
		if c.Profiles.Port < MinPort || c.Profiles.Port > MaxPort {
			return fmt.Errorf("invalid profiles database port: %d (must be between %d and %d)", c.Profiles.Port, MinPort, MaxPort)
		}
		if c.Profiles.Database == "" {
			return fmt.Errorf("profiles database name is required")
		}
	default:
		return fmt.Errorf("unsupported profiles driver: %q", c.Profiles.Driver)
	}
	return nil
}
