package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/atharvakonge/paper-trader/internal/config"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// PostgresTestConfig reads TEST_DB_* variables. ok is false when TEST_DB_HOST is unset,
// which callers treat as "skip the PostgreSQL tests".
func PostgresTestConfig(mode string) (cfg config.DatabaseConfig, ok bool) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return cfg, false
	}
	port, err := strconv.Atoi(getEnv("TEST_DB_PORT", "5433"))
	if err != nil {
		port = 5433
	}
	return config.DatabaseConfig{
		AccessMode:   mode,
		Host:         host,
		Port:         port,
		Username:     getEnv("TEST_DB_USER", "trader"),
		Password:     getEnv("TEST_DB_PASSWORD", "trading123"),
		Name:         getEnv("TEST_DB_NAME", "trading_db"),
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		LogLevel:     "silent",
		Migrate:      true,
	}, true
}

// SetupTestStore opens a migrated store for mode. Memory mode never skips; the
// PostgreSQL modes skip unless TEST_DB_HOST is set.
func SetupTestStore(t *testing.T, mode string) Store {
	t.Helper()
	if mode == config.AccessMemory {
		return NewMemoryStore()
	}

	cfg, ok := PostgresTestConfig(mode)
	if !ok {
		t.Skip("TEST_DB_HOST not set; skipping PostgreSQL tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, cfg, logger.NewNoopLogger())
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// CreateTestUser registers a user with a unique name and the given cash, including the
// opening cash event.
func CreateTestUser(t *testing.T, store Store, username string, cash string) *models.User {
	t.Helper()

	amount := decimal.RequireFromString(cash)
	user := &models.User{
		Username:     fmt.Sprintf("%s_%d", username, time.Now().UnixNano()),
		PasswordHash: "x",
		Cash:         amount,
	}
	opening := &models.CashEvent{Kind: models.CashOpening, Amount: amount, BalanceAfter: amount}

	if err := store.CreateUser(context.Background(), user, opening); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
