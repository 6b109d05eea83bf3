package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	SheetsBaseURL      string
	TokenURL           string
	ServiceAccountMail string
	ServiceAccountKey  string
	ConfigSheetID      string

	RedisAddr string

	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration

	Timezone string

	CacheTTL time.Duration

	CheckinLimit       int
	CheckinWindow      time.Duration
	KidsCheckinLimit   int
	KidsCheckinWindow  time.Duration
	RateLimitPerMin    int
	RateLimitUseRedis  bool
	AuditRetryInterval time.Duration
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8081"),

		SheetsBaseURL:      getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com"),
		TokenURL:           getEnv("SHEETS_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		ServiceAccountMail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),
		ServiceAccountKey:  getEnv("SERVICE_ACCOUNT_KEY", ""),
		ConfigSheetID:      getEnv("EVENT_CONFIG_SHEET_ID", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		JWTIssuer:     getEnv("JWT_ISSUER", "rollcall"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		SessionTTL:    durationEnv("SESSION_TTL", 12*time.Hour),

		Timezone: getEnv("EVENT_TIMEZONE", "Asia/Taipei"),

		CacheTTL: durationEnv("ROSTER_CACHE_TTL", 10*time.Second),

		CheckinLimit:       intEnv("CHECKIN_LIMIT", 30),
		CheckinWindow:      durationEnv("CHECKIN_WINDOW", time.Minute),
		KidsCheckinLimit:   intEnv("KIDS_CHECKIN_LIMIT", 40),
		KidsCheckinWindow:  durationEnv("KIDS_CHECKIN_WINDOW", time.Second),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 300),
		RateLimitUseRedis:  boolEnv("RATE_LIMIT_USE_REDIS", false),
		AuditRetryInterval: durationEnv("AUDIT_RETRY_INTERVAL", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
