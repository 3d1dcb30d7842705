package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/detectext/detectext/internal/observability"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig                `mapstructure:"server"`
	Providers ProvidersConfig             `mapstructure:"providers"`
	Storage   StorageConfig               `mapstructure:"storage"`
	Email     EmailConfig                 `mapstructure:"email"`
	Tracing   observability.TracingConfig `mapstructure:"tracing"`
	Debug     bool                        `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
	StaticDir    string        `mapstructure:"static_dir"`
}

// ProvidersConfig contains the OCR vendor settings
type ProvidersConfig struct {
	// DefaultEngine is used when a request omits the engine field.
	DefaultEngine string        `mapstructure:"default_engine"`
	Timeout       time.Duration `mapstructure:"timeout"`

	Amazon    AmazonConfig    `mapstructure:"amazon"`
	Google    GoogleConfig    `mapstructure:"google"`
	Microsoft MicrosoftConfig `mapstructure:"microsoft"`
}

// AmazonConfig contains AWS Rekognition credentials
type AmazonConfig struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GoogleConfig contains Google Cloud Vision settings
type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// MicrosoftConfig contains Azure Computer Vision settings
type MicrosoftConfig struct {
	SubscriptionKey string `mapstructure:"subscription_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// StorageConfig contains archive storage settings
type StorageConfig struct {
	Provider      string `mapstructure:"provider"` // local or s3
	LocalPath     string `mapstructure:"local_path"`
	S3Endpoint    string `mapstructure:"s3_endpoint"`
	S3AccessKey   string `mapstructure:"s3_access_key"`
	S3SecretKey   string `mapstructure:"s3_secret_key"`
	S3Region      string `mapstructure:"s3_region"`
	Bucket        string `mapstructure:"bucket"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// EmailConfig contains notification email settings
type EmailConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"` // smtp, sendgrid, mailgun, ses
	FromAddress    string `mapstructure:"from_address"`
	FromName       string `mapstructure:"from_name"`
	ToAddress      string `mapstructure:"to_address"`
	ReplyToAddress string `mapstructure:"reply_to_address"`
	SubjectPrefix  string `mapstructure:"subject_prefix"`

	// SMTP Settings
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPTLS      bool   `mapstructure:"smtp_tls"`

	// SendGrid Settings
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`

	// Mailgun Settings
	MailgunAPIKey string `mapstructure:"mailgun_api_key"`
	MailgunDomain string `mapstructure:"mailgun_domain"`

	// AWS SES Settings
	SESAccessKey string `mapstructure:"ses_access_key"`
	SESSecretKey string `mapstructure:"ses_secret_key"`
	SESRegion    string `mapstructure:"ses_region"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("detectext")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/detectext")

	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("DETECTEXT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
		"../.env", // For when running from subdirectories
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":5555")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.body_limit", 20*1024*1024) // 20MB
	viper.SetDefault("server.static_dir", "./public")

	// Provider defaults
	viper.SetDefault("providers.default_engine", "google")
	viper.SetDefault("providers.timeout", "30s")
	viper.SetDefault("providers.amazon.region", "us-east-1")
	viper.SetDefault("providers.google.endpoint", "https://vision.googleapis.com")
	viper.SetDefault("providers.microsoft.endpoint", "https://westcentralus.api.cognitive.microsoft.com")

	// Storage defaults
	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.local_path", "./uploads")
	viper.SetDefault("storage.bucket", "detecttext-archive")
	viper.SetDefault("storage.max_upload_size", 10*1024*1024) // 10MB

	// Email defaults
	viper.SetDefault("email.enabled", false)
	viper.SetDefault("email.provider", "smtp")
	viper.SetDefault("email.from_address", "noreply@localhost")
	viper.SetDefault("email.from_name", "DetectText")
	viper.SetDefault("email.subject_prefix", "[DetectText]")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.smtp_tls", true)

	// Tracing defaults
	tracing := observability.DefaultTracingConfig()
	viper.SetDefault("tracing.enabled", tracing.Enabled)
	viper.SetDefault("tracing.endpoint", tracing.Endpoint)
	viper.SetDefault("tracing.service_name", tracing.ServiceName)
	viper.SetDefault("tracing.sample_rate", tracing.SampleRate)
	viper.SetDefault("tracing.insecure", tracing.Insecure)

	viper.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Providers.DefaultEngine {
	case "amazon", "google", "microsoft", "all":
	default:
		return fmt.Errorf("default engine must be one of amazon, google, microsoft, all (got %q)", c.Providers.DefaultEngine)
	}

	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	if c.Storage.Provider != "local" && c.Storage.Provider != "s3" {
		return fmt.Errorf("storage provider must be 'local' or 's3'")
	}

	if c.Storage.Provider == "s3" {
		if c.Storage.S3AccessKey == "" || c.Storage.S3SecretKey == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("S3 configuration is incomplete")
		}
	}

	if c.Email.Enabled {
		if err := c.Email.Validate(); err != nil {
			return fmt.Errorf("email configuration error: %w", err)
		}
	}

	return nil
}

// Validate validates email configuration
func (ec *EmailConfig) Validate() error {
	if ec.FromAddress == "" {
		return fmt.Errorf("from_address is required when email is enabled")
	}
	if ec.ToAddress == "" {
		return fmt.Errorf("to_address is required when email is enabled")
	}

	switch ec.Provider {
	case "smtp", "":
		if ec.SMTPHost == "" {
			return fmt.Errorf("smtp_host is required when using SMTP provider")
		}
		if ec.SMTPPort == 0 {
			return fmt.Errorf("smtp_port is required when using SMTP provider")
		}
	case "sendgrid":
		if ec.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid_api_key is required when using SendGrid provider")
		}
	case "mailgun":
		if ec.MailgunAPIKey == "" {
			return fmt.Errorf("mailgun_api_key is required when using Mailgun provider")
		}
		if ec.MailgunDomain == "" {
			return fmt.Errorf("mailgun_domain is required when using Mailgun provider")
		}
	case "ses":
		if ec.SESAccessKey == "" || ec.SESSecretKey == "" {
			return fmt.Errorf("ses_access_key and ses_secret_key are required when using SES provider")
		}
		if ec.SESRegion == "" {
			return fmt.Errorf("ses_region is required when using SES provider")
		}
	default:
		return fmt.Errorf("invalid email provider: %s (must be one of: smtp, sendgrid, mailgun, ses)", ec.Provider)
	}

	return nil
}
