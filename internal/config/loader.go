package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FS_DATABASE_HOST.
const EnvPrefix = "FS"

// ConfigPaths defines the paths to look for config files
var ConfigPaths = []string{
	"./configs",
	"../configs",
	"../../configs",
}

// DotEnvPaths defines the paths to look for .env files
var DotEnvPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"./configs/.env",
}

// Load reads .env, the environment's YAML file and FS_* overrides, in that order of
// increasing precedence.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = loadDotEnvFile()

	env := strings.ToLower(os.Getenv(EnvPrefix + "_ENV"))
	if env == "" {
		env = Development
	}

	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")
	for _, path := range ConfigPaths {
		v.AddConfigPath(path)
	}
	return load(v, env)
}

func load(v *viper.Viper, env string) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Environment = env
	cfg.Quote.Symbols = normalizeSymbols(cfg.Quote.Symbols)

	return &cfg, nil
}

func loadDotEnvFile() error {
	for _, path := range DotEnvPaths {
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
	}
	return fmt.Errorf("no .env file found in search paths")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.idleTimeout", 60*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.accessMode", AccessSQL)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "trader")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "finance")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)
	v.SetDefault("database.connMaxIdleTime", 5*time.Minute)
	v.SetDefault("database.logLevel", "warn")
	v.SetDefault("database.migrate", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "")

	v.SetDefault("trading.workers", 5)
	v.SetDefault("trading.queueSize", 100)
	v.SetDefault("trading.initialCash", "10000.00")
	v.SetDefault("trading.historyLimit", 0)

	v.SetDefault("quote.provider", ProviderSimulated)
	v.SetDefault("quote.baseURL", "https://cloud.iexapis.com/stable")
	v.SetDefault("quote.apiKey", "")
	v.SetDefault("quote.timeout", 5*time.Second)
	v.SetDefault("quote.symbols", []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN"})
	v.SetDefault("quote.tickInterval", time.Second)

	v.SetDefault("session.cookieName", "session")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure", false)
}

// normalizeSymbols accepts both YAML lists and a comma separated env value.
func normalizeSymbols(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
