package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"stock-recon/internal/reconcile/model"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	AuthSecret      string
	RateLimitPerMin int
	VocabularyFile  string
	MatchThreshold  int
	Markup          float64
	DefaultCategory string
	DefaultVATRate  float64
	GenerateCodes   bool
}

// Load читает окружение; .env в рабочем каталоге необязателен.
func Load() Config {
	_ = godotenv.Load()

	def := model.DefaultPolicy()
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         atoi(getenv("PORT", "8082"), 8082),
		AllowOrigins: splitList(getenv("ALLOW_ORIGINS", "*")),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		MaxUploadMB:  atoi(getenv("MAX_UPLOAD_MB", "32"), 32),
		LogFile:      getenv("LOG_FILE", "logs/stock-recon.log"),

		DatabaseURL: getenv("DATABASE_URL", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       atoi(getenv("REDIS_DB", "0"), 0),

		KafkaBrokers: splitList(getenv("KAFKA_BROKERS", "")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "invoice-events"),

		AuthSecret:      getenv("AUTH_SECRET", ""),
		RateLimitPerMin: atoi(getenv("RATE_LIMIT_PER_MIN", "120"), 120),
		VocabularyFile:  getenv("VOCABULARY_FILE", ""),
		MatchThreshold:  atoi(getenv("MATCH_THRESHOLD", strconv.Itoa(def.Threshold)), def.Threshold),
		Markup:          atof(getenv("MARKUP", ""), def.Markup),
		DefaultCategory: getenv("DEFAULT_CATEGORY", def.DefaultCategory),
		DefaultVATRate:  atof(getenv("DEFAULT_VAT", ""), def.DefaultVATRate),
		GenerateCodes:   getenv("GENERATE_CODES", "true") != "false",
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if len(c.AuthSecret) < 32 {
		errs = append(errs, errors.New("AUTH_SECRET must be at least 32 characters"))
	}
	if c.MatchThreshold < 1 || c.MatchThreshold > 100 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be 1..100, got %d", c.MatchThreshold))
	}
	if c.Markup <= 1 {
		errs = append(errs, fmt.Errorf("MARKUP must be > 1, got %v", c.Markup))
	}
	if c.DefaultVATRate < 0 || c.DefaultVATRate > 100 {
		errs = append(errs, fmt.Errorf("DEFAULT_VAT must be 0..100, got %v", c.DefaultVATRate))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.RateLimitPerMin <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MIN must be positive"))
	}
	return errors.Join(errs...)
}

// Policy: правила заведения новых товаров.
func (c Config) Policy() model.Policy {
	return model.Policy{
		Threshold:       c.MatchThreshold,
		Markup:          c.Markup,
		DefaultCategory: c.DefaultCategory,
		DefaultVATRate:  c.DefaultVATRate,
		GenerateCodes:   c.GenerateCodes,
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

func atof(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
