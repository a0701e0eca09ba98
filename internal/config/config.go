package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Environment names
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// Database access modes. The SQL and ORM modes behave identically; they differ only in
// how queries are built.
const (
	AccessSQL    = "sql"
	AccessORM    = "orm"
	AccessMemory = "memory"
)

// Log encodings. An empty format follows the environment: JSON in production, console
// otherwise.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Quote providers
const (
	ProviderIEX       = "iex"
	ProviderSimulated = "simulated"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Logger      LoggerConfig   `mapstructure:"logger"`
	Trading     TradingConfig  `mapstructure:"trading"`
	Quote       QuoteConfig    `mapstructure:"quote"`
	Session     SessionConfig  `mapstructure:"session"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	AccessMode      string        `mapstructure:"accessMode"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslMode"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	LogLevel        string        `mapstructure:"logLevel"`
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN builds a lib/pq / pgx keyword connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Name, d.SSLMode)
}

// LoggerConfig contains logger settings
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TradingConfig contains trade processing settings
type TradingConfig struct {
	Workers      int    `mapstructure:"workers"`
	QueueSize    int    `mapstructure:"queueSize"`
	InitialCash  string `mapstructure:"initialCash"`
	HistoryLimit int    `mapstructure:"historyLimit"`
}

// InitialCashAmount parses InitialCash. Validate guarantees it parses.
func (t TradingConfig) InitialCashAmount() decimal.Decimal {
	d, err := decimal.NewFromString(t.InitialCash)
	if err != nil {
		return decimal.NewFromInt(10000)
	}
	return d
}

// QuoteConfig contains quote provider settings
type QuoteConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"baseURL"`
	APIKey       string        `mapstructure:"apiKey"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Symbols      []string      `mapstructure:"symbols"`
	TickInterval time.Duration `mapstructure:"tickInterval"`
}

// SessionConfig contains session cookie settings
type SessionConfig struct {
	CookieName string        `mapstructure:"cookieName"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Environment {
	case Development, Production, Test:
	default:
		problems = append(problems, fmt.Sprintf("environment %q must be one of %s, %s, %s",
			c.Environment, Development, Production, Test))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port")
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdownTimeout")
	}

	switch c.Database.AccessMode {
	case AccessSQL, AccessORM:
		if c.Database.Host == "" {
			problems = append(problems, "database.host")
		}
		if c.Database.Username == "" {
			problems = append(problems, "database.username")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.name")
		}
		if c.Database.Port <= 0 {
			problems = append(problems, "database.port")
		}
	case AccessMemory:
	default:
		problems = append(problems, fmt.Sprintf("database.accessMode %q must be one of %s, %s, %s",
			c.Database.AccessMode, AccessSQL, AccessORM, AccessMemory))
	}

	switch c.Logger.Format {
	case "", LogFormatJSON, LogFormatConsole:
	default:
		problems = append(problems, fmt.Sprintf("logger.format %q must be %s or %s",
			c.Logger.Format, LogFormatJSON, LogFormatConsole))
	}

	if c.Trading.Workers < 1 {
		problems = append(problems, "trading.workers")
	}
	if c.Trading.QueueSize < 0 {
		problems = append(problems, "trading.queueSize")
	}
	if d, err := decimal.NewFromString(c.Trading.InitialCash); err != nil || d.IsNegative() || d.GreaterThan(models.MaxCash) {
		problems = append(problems, "trading.initialCash")
	}

	switch c.Quote.Provider {
	case ProviderIEX:
		if c.Quote.APIKey == "" {
			problems = append(problems, "quote.apiKey")
		}
		if c.Quote.BaseURL == "" {
			problems = append(problems, "quote.baseURL")
		}
	case ProviderSimulated:
		if len(c.Quote.Symbols) == 0 {
			problems = append(problems, "quote.symbols")
		}
	default:
		problems = append(problems, fmt.Sprintf("quote.provider %q must be %s or %s",
			c.Quote.Provider, ProviderIEX, ProviderSimulated))
	}

	if c.Session.CookieName == "" {
		problems = append(problems, "session.cookieName")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}
