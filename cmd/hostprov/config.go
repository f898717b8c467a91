package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Panel    PanelConfig    `mapstructure:"panel"`
	FTP      FTPConfig      `mapstructure:"ftp"`
	SSL      SSLConfig      `mapstructure:"ssl"`
	Email    EmailConfig    `mapstructure:"email"`
	Platform PlatformConfig `mapstructure:"platform"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PublicURL       string        `mapstructure:"public_url"` // advertised in the OpenAPI document
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PanelConfig holds control panel API configuration.
type PanelConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Insecure bool          `mapstructure:"insecure"`

	// PublicURL is the panel address shown to customers.
	PublicURL string `mapstructure:"public_url"`
}

// FTPConfig holds welcome-page upload configuration.
type FTPConfig struct {
	Host    string        `mapstructure:"host"` // empty uploads to the account domain
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SSLConfig holds SSL probing configuration.
type SSLConfig struct {
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	WatchEnabled   bool          `mapstructure:"watch_enabled"`
	WatchInterval  time.Duration `mapstructure:"watch_interval"`
	WatchBatchSize int           `mapstructure:"watch_batch_size"`
	WatchParallel  int           `mapstructure:"watch_parallel"`
}

// EmailConfig holds notification delivery configuration.
type EmailConfig struct {
	// Driver is one of smtp, postmark, mailbox.
	Driver       string `mapstructure:"driver"`
	SenderEmail  string `mapstructure:"sender_email"`
	SupportEmail string `mapstructure:"support_email"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPTLSMode  string `mapstructure:"smtp_tls_mode"`

	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`

	// MailboxDir receives messages when Driver is mailbox.
	MailboxDir string `mapstructure:"mailbox_dir"`
}

// PlatformConfig holds the hosting platform's public identity.
type PlatformConfig struct {
	Suffix      string        `mapstructure:"suffix"`
	ServerIP    string        `mapstructure:"server_ip"`
	Nameservers []string      `mapstructure:"nameservers"`
	CatalogFile string        `mapstructure:"catalog_file"` // empty uses the embedded catalog
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// WebhookConfig holds payment webhook configuration.
type WebhookConfig struct {
	// Secret validates X-Webhook-Secret. Empty disables the endpoint.
	Secret string `mapstructure:"secret"`
}

// SecurityConfig holds the key material for stored credentials.
type SecurityConfig struct {
	// MasterSecret is stretched with argon2id into the AES-256 key.
	// Set via HOSTPROV_SECURITY_MASTER_SECRET.
	MasterSecret string `mapstructure:"master_secret"`
	Salt         string `mapstructure:"salt"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m") // provisioning runs inside the request
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.public_url", "")
	v.SetDefault("database.dsn", "./data/hostprov.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("panel.url", "")
	v.SetDefault("panel.username", "root")
	v.SetDefault("panel.token", "")
	v.SetDefault("panel.timeout", "30s")
	v.SetDefault("panel.insecure", false)
	v.SetDefault("panel.public_url", "")

	v.SetDefault("ftp.host", "")
	v.SetDefault("ftp.port", 21)
	v.SetDefault("ftp.timeout", "30s")

	v.SetDefault("ssl.probe_timeout", "10s")
	v.SetDefault("ssl.watch_enabled", true)
	v.SetDefault("ssl.watch_interval", "15m")
	v.SetDefault("ssl.watch_batch_size", 200)
	v.SetDefault("ssl.watch_parallel", 5)

	v.SetDefault("email.driver", "mailbox")
	v.SetDefault("email.sender_email", "")
	v.SetDefault("email.support_email", "")
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_username", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.smtp_tls_mode", "starttls")
	v.SetDefault("email.postmark_server_token", "")
	v.SetDefault("email.postmark_account_token", "")
	v.SetDefault("email.mailbox_dir", "./data/mailbox")

	v.SetDefault("platform.suffix", "")
	v.SetDefault("platform.server_ip", "")
	v.SetDefault("platform.nameservers", []string{})
	v.SetDefault("platform.catalog_file", "")
	v.SetDefault("platform.step_timeout", "30s")

	v.SetDefault("webhook.secret", "")
	v.SetDefault("security.master_secret", "")
	v.SetDefault("security.salt", "hostprov")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("HOSTPROV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ControlPanelURL returns the customer-facing panel address.
func (c *Config) ControlPanelURL() string {
	if c.Panel.PublicURL != "" {
		return c.Panel.PublicURL
	}
	return c.Panel.URL
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
