package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PaymentPlan is a purchasable subscription period.
type PaymentPlan struct {
	Code   string
	Amount int64
	Days   int
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSOrigins            string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	JWTTTL                 time.Duration
	StatsCacheTTL          time.Duration
	SSEKeepAlive           time.Duration
	SubmissionRateLimit    int
	LoginRateLimit         int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MidtransServerKey      string
	MidtransProduction     bool
	PaymentCurrency        string
	PaymentPlans           []PaymentPlan
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
// Keys use the CBT_ prefix with dots replaced by underscores, e.g. CBT_JWT_SECRET.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CBT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CBT API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("realtime.channel", "cbt")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("stats.cache_ttl", "2m")
	v.SetDefault("sse.keepalive", "25s")
	v.SetDefault("rate_limit.submissions", 5)
	v.SetDefault("rate_limit.login", 10)
	v.SetDefault("cloudinary.folder", "cbt/lesson-plans")
	v.SetDefault("payment.currency", "IDR")
	v.SetDefault("payment.plans", "term:150000:120,annual:400000:365")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	jwtTTL, err := parseDuration(v, "jwt.ttl")
	if err != nil {
		return Config{}, err
	}
	statsTTL, err := parseDuration(v, "stats.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "sse.keepalive")
	if err != nil {
		return Config{}, err
	}
	plans, err := ParsePlans(v.GetString("payment.plans"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSOrigins:            v.GetString("cors.origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 jwtTTL,
		StatsCacheTTL:          statsTTL,
		SSEKeepAlive:           keepAlive,
		SubmissionRateLimit:    v.GetInt("rate_limit.submissions"),
		LoginRateLimit:         v.GetInt("rate_limit.login"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		MidtransServerKey:      v.GetString("midtrans.server_key"),
		MidtransProduction:     v.GetBool("midtrans.production"),
		PaymentCurrency:        strings.ToUpper(v.GetString("payment.currency")),
		PaymentPlans:           plans,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.JWTTTL <= 0 {
		return Config{}, fmt.Errorf("jwt ttl must be positive")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ParsePlans reads a comma separated list of code:amount:days entries.
func ParsePlans(raw string) ([]PaymentPlan, error) {
	var plans []PaymentPlan
	seen := map[string]struct{}{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid payment plan %q: want code:amount:days", entry)
		}
		code := strings.ToLower(strings.TrimSpace(parts[0]))
		amount, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("invalid amount in payment plan %q", entry)
		}
		days, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid days in payment plan %q", entry)
		}
		if code == "" {
			return nil, fmt.Errorf("payment plan %q has no code", entry)
		}
		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("duplicate payment plan %q", code)
		}
		seen[code] = struct{}{}
		plans = append(plans, PaymentPlan{Code: code, Amount: amount, Days: days})
	}
	return plans, nil
}
