package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{
		"SERVER_PORT", "PORT", "JWT_TTL_HOURS", "DARAJA_BASE_URL",
		"PREMIUM_UNLOCK_AMOUNT", "STK_PUSH_RATE_LIMIT_PER_MINUTE",
		"PENDING_PAYMENT_SWEEP_SCHEDULE", "PENDING_PAYMENT_MAX_AGE_MINUTES",
	} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "5000" {
		t.Fatalf("expected default port 5000, got %q", cfg.ServerPort)
	}
	if cfg.DarajaBaseURL != "https://sandbox.safaricom.co.ke" {
		t.Fatalf("expected the sandbox base url by default, got %q", cfg.DarajaBaseURL)
	}
	if cfg.JWTTTL() != 720*time.Hour {
		t.Fatalf("expected 30-day token lifetime, got %v", cfg.JWTTTL())
	}
	if cfg.PremiumUnlockAmount != 1 {
		t.Fatalf("expected default unlock amount 1, got %d", cfg.PremiumUnlockAmount)
	}
	if cfg.StkPushRateLimitPerMinute != 5 {
		t.Fatalf("expected default rate limit 5, got %d", cfg.StkPushRateLimitPerMinute)
	}
	if cfg.PendingPaymentSweepSchedule != "@every 10m" {
		t.Fatalf("unexpected sweep schedule %q", cfg.PendingPaymentSweepSchedule)
	}
	if cfg.PendingPaymentMaxAge() != 2*time.Hour {
		t.Fatalf("expected stale cutoff of 2h, got %v", cfg.PendingPaymentMaxAge())
	}
}

func TestLoadConfig_PortAliasFromPlatformEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	setEnvWithCleanup(t, "PORT", "8080")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected PORT to feed ServerPort, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NonPositiveUnlockAmountIsCoerced(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PREMIUM_UNLOCK_AMOUNT", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PremiumUnlockAmount != 1 {
		t.Fatalf("a zero price must be coerced to the minimum chargeable amount, got %d", cfg.PremiumUnlockAmount)
	}
}

func TestLoadConfig_ReadsDarajaCredentials(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DARAJA_CONSUMER_KEY", "ck")
	setEnvWithCleanup(t, "DARAJA_CONSUMER_SECRET", "cs")
	setEnvWithCleanup(t, "DARAJA_SHORTCODE", "174379")
	setEnvWithCleanup(t, "DARAJA_PASSKEY", "pk")
	setEnvWithCleanup(t, "BACKEND_URL", "https://api.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DarajaConsumerKey != "ck" || cfg.DarajaConsumerSecret != "cs" {
		t.Fatalf("consumer credentials not loaded: %+v", cfg)
	}
	if cfg.DarajaShortcode != "174379" || cfg.DarajaPasskey != "pk" {
		t.Fatalf("shortcode credentials not loaded: %+v", cfg)
	}
	if cfg.BackendURL != "https://api.example.com" {
		t.Fatalf("backend url not loaded, got %q", cfg.BackendURL)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
