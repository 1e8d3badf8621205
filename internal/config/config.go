package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Order workflow states a merchant may pick as the post-payment status.
const (
	OrderStatusCompleted   = "completed"
	OrderStatusFulfillment = "fulfillment"
	OrderStatusValidation  = "validation"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string
	SiteURL    string
	PayTabs    PayTabsConfig
}

// PayTabsConfig is the merchant configuration consumed by the gateway client
// and the reconciler.
type PayTabsConfig struct {
	Region              string
	ProfileID           string
	ServerKey           string
	CompleteOrderStatus string
	PayPageMode         string
	Framed              bool
	HideShipping        bool
	// AdvanceOnAnyStatus moves the order to CompleteOrderStatus for cancelled
	// and failed callbacks too, matching the legacy plugin.
	AdvanceOnAnyStatus bool
	Timeout            time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    envOr("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("SECRET_KEY"),
		SiteURL:    strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		PayTabs: PayTabsConfig{
			Region:              strings.ToUpper(envOr("PAYTABS_REGION", "GLOBAL")),
			ProfileID:           os.Getenv("PAYTABS_PROFILE_ID"),
			ServerKey:           os.Getenv("PAYTABS_SERVER_KEY"),
			CompleteOrderStatus: envOr("PAYTABS_COMPLETE_ORDER_STATUS", OrderStatusCompleted),
			PayPageMode:         strings.ToLower(envOr("PAYTABS_PAY_PAGE_MODE", "sale")),
			Framed:              envBool("PAYTABS_FRAMED"),
			HideShipping:        envBool("PAYTABS_HIDE_SHIPPING"),
			AdvanceOnAnyStatus:  envBool("PAYTABS_ADVANCE_ON_ANY_STATUS"),
			Timeout:             envDuration("PAYTABS_TIMEOUT", 15*time.Second),
		},
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}
	if err := cfg.PayTabs.Validate(); err != nil {
		log.Fatalf("invalid PayTabs configuration: %v", err)
	}

	return cfg
}

// Validate checks the values the reconciler depends on at runtime.
func (c PayTabsConfig) Validate() error {
	switch c.CompleteOrderStatus {
	case OrderStatusCompleted, OrderStatusFulfillment, OrderStatusValidation:
	default:
		return fmt.Errorf("unsupported complete order status %q", c.CompleteOrderStatus)
	}

	switch c.PayPageMode {
	case "sale", "auth":
	default:
		return fmt.Errorf("unsupported pay page mode %q", c.PayPageMode)
	}

	if c.ProfileID == "" || c.ServerKey == "" {
		return fmt.Errorf("profile id and server key are required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
