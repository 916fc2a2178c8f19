// Package config loads the server configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every setting of the settlement server. MySQLDSN and
// AMQPURL are optional: without them the server runs on the in-memory
// store and drops events.
type Config struct {
	MySQLDSN string
	AMQPURL  string

	ServerPort string

	Owner             string
	CustodyAccount    string
	FeeRateBps        uint64
	FeeRecipient      string
	WhitelistRequired bool

	// TickInterval is the wall-time length of one logical tick when no
	// external tick feed is wired.
	TickInterval time.Duration
}

// Load reads the .env file (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment alone may be
	// complete.
	_ = godotenv.Load()

	feeRateBps, err := parseUint(getEnv("FEE_RATE_BPS", "250"))
	if err != nil {
		return nil, fmt.Errorf("FEE_RATE_BPS: %w", err)
	}
	whitelistRequired, err := strconv.ParseBool(getEnv("WHITELIST_REQUIRED", "false"))
	if err != nil {
		return nil, fmt.Errorf("WHITELIST_REQUIRED: %w", err)
	}
	tickInterval, err := time.ParseDuration(getEnv("TICK_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("TICK_INTERVAL: %w", err)
	}

	return &Config{
		MySQLDSN:          os.Getenv("MYSQL_DSN"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		ServerPort:        getEnv("SERVER_PORT", ":8080"),
		Owner:             getEnv("PLATFORM_OWNER", "owner"),
		CustodyAccount:    getEnv("CUSTODY_ACCOUNT", "escrow"),
		FeeRateBps:        feeRateBps,
		FeeRecipient:      getEnv("FEE_RECIPIENT", "platform"),
		WhitelistRequired: whitelistRequired,
		TickInterval:      tickInterval,
	}, nil
}

func parseUint(value string) (uint64, error) {
	return strconv.ParseUint(value, 10, 64)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
