// Package config centralizes every environment variable spec.md §6 names
// behind one Load(), failing startup with log.Fatalf on a missing required
// variable the same way the teacher's cmd/worker/main.go refuses to start
// without DATABASE_URL.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cast"
)

// Config is the fully-resolved process configuration for both cmd/server
// and cmd/worker.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string

	EnableStripe   bool
	EnableRazorpay bool
	EnableMock     bool

	StripeAPIKey      string
	RazorpayKeyID     string
	RazorpayKeySecret string

	RateLimitMax      int
	RateLimitWindowMs int

	WebhookTimeoutMs int
	WebhookMaxRetries int

	MockSuccessRate      float64
	MockAverageLatencyMs int
	MockEnableChaos      bool
	MockChaosRate        float64

	IdempotencyStrictMode bool

	EnableSQSDeadLetter    bool
	SQSDeadLetterQueueURL string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
}

// Load reads every variable from the process environment, applying the
// defaults spec.md §4/§6 name, and fails fast on a missing required var.
func Load() *Config {
	cfg := &Config{
		DatabaseURL: mustGet("DATABASE_URL"),
		RedisURL:    mustGet("REDIS_URL"),
		Port:        getDefault("PORT", "8080"),

		EnableStripe:   getBool("ENABLE_STRIPE", false),
		EnableRazorpay: getBool("ENABLE_RAZORPAY", false),
		EnableMock:     getBool("ENABLE_MOCK", true),

		StripeAPIKey:      os.Getenv("STRIPE_API_KEY"),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),

		RateLimitMax:      getInt("RATE_LIMIT_MAX", 100),
		RateLimitWindowMs: getInt("RATE_LIMIT_WINDOW_MS", 60000),

		WebhookTimeoutMs:  getInt("WEBHOOK_TIMEOUT_MS", 30000),
		WebhookMaxRetries: getInt("WEBHOOK_MAX_RETRIES", 10),

		MockSuccessRate:      getFloat("MOCK_GATEWAY_SUCCESS_RATE", 1.0),
		MockAverageLatencyMs: getInt("MOCK_GATEWAY_AVERAGE_LATENCY_MS", 50),
		MockEnableChaos:      getBool("MOCK_GATEWAY_ENABLE_CHAOS", false),
		MockChaosRate:        getFloat("MOCK_GATEWAY_CHAOS_RATE", 0.0),

		IdempotencyStrictMode: getBool("IDEMPOTENCY_STRICT_MODE", false),

		EnableSQSDeadLetter:   getBool("ENABLE_SQS_DEADLETTER", false),
		SQSDeadLetterQueueURL: os.Getenv("AWS_SQS_DEADLETTER_QUEUE_URL"),
		AWSAccessKeyID:        os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}

	if cfg.EnableStripe && cfg.StripeAPIKey == "" {
		log.Fatal("ENABLE_STRIPE=true requires STRIPE_API_KEY")
	}
	if cfg.EnableRazorpay && (cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "") {
		log.Fatal("ENABLE_RAZORPAY=true requires RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET")
	}
	if cfg.EnableSQSDeadLetter && cfg.SQSDeadLetterQueueURL == "" {
		log.Fatal("ENABLE_SQS_DEADLETTER=true requires AWS_SQS_DEADLETTER_QUEUE_URL")
	}

	return cfg
}

func mustGet(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required environment variable %s", key)
	}
	return v
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		log.Fatalf("invalid value for %s: %v", key, err)
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		log.Fatalf("invalid value for %s: %v", key, err)
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		log.Fatalf("invalid value for %s: %v", key, err)
	}
	return f
}

// Validate is a light sanity check used by /readyz; it never fails the
// process, only reports.
func (c *Config) Validate() error {
	if !c.EnableStripe && !c.EnableRazorpay && !c.EnableMock {
		return fmt.Errorf("no gateway enabled: set ENABLE_STRIPE, ENABLE_RAZORPAY or ENABLE_MOCK")
	}
	return nil
}
