package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultServiceableAreas are the locations the business currently operates in.
var DefaultServiceableAreas = []string{"HSR Layout", "Koramangala", "Electronic City"}

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	CORSAllowedOrigins []string
	AdminJWTSecret     string

	// Lead form
	ServiceableAreas   []string
	FormVariant        string
	OtherOffersPayment bool
	LeadSubmitTimeout  time.Duration
	SessionTTL         time.Duration

	// OTP delivery
	OTPProvider      string
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	FunctionsBaseURL string
	FunctionsAPIKey  string
	FunctionsTimeout time.Duration
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	PhoneCountryCode string

	// Rate limits
	OTPRatePerMinute  int
	LeadRatePerMinute int

	// Payments
	PaymentAmount int
	SupportPhone  string

	// Lead notifications
	EmailProvider      string
	LeadNotifyEmail    string
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	LeadEventsQueueURL string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		ServiceableAreas:   getEnvAsList("SERVICEABLE_AREAS", DefaultServiceableAreas),
		FormVariant:        strings.ToLower(strings.TrimSpace(getEnv("FORM_VARIANT", "pay-now"))),
		OtherOffersPayment: getEnvAsBool("OTHER_OFFERS_PAYMENT", false),
		LeadSubmitTimeout:  getEnvAsDuration("LEAD_SUBMIT_TIMEOUT", 10*time.Second),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 30*time.Minute),

		OTPProvider:      strings.ToLower(strings.TrimSpace(getEnv("OTP_PROVIDER", "auto"))),
		OTPTTL:           getEnvAsDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		FunctionsBaseURL: strings.TrimRight(getEnv("FUNCTIONS_BASE_URL", ""), "/"),
		FunctionsAPIKey:  getEnv("FUNCTIONS_API_KEY", ""),
		FunctionsTimeout: getEnvAsDuration("FUNCTIONS_TIMEOUT", 10*time.Second),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		PhoneCountryCode: getEnv("PHONE_COUNTRY_CODE", "91"),

		OTPRatePerMinute:  getEnvAsInt("RATE_LIMIT_OTP_PER_MIN", 5),
		LeadRatePerMinute: getEnvAsInt("RATE_LIMIT_LEADS_PER_MIN", 10),

		PaymentAmount: getEnvAsInt("PAYMENT_AMOUNT", 999),
		SupportPhone:  getEnv("SUPPORT_PHONE", ""),

		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		LeadNotifyEmail:    getEnv("LEAD_NOTIFY_EMAIL", ""),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "Inlane Driving"),
		LeadEventsQueueURL: getEnv("LEAD_EVENTS_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
