package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	// Token service
	JWTSecret           string
	JWTAccessTTLMinutes int

	// Password reset tickets
	ResetTicketTTLMinutes int

	// Avatar uploads
	UploadDir      string
	MaxAvatarBytes int64

	// Origin used to build absolute URLs for stored avatar paths
	PublicBaseURL string

	CORSOrigins []string

	// Optional redis for the credential-endpoint rate limiter
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	// Seed admin account
	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)

	return Config{
		Env:   env,
		Port:  port,
		DBURL: buildDBURL(),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),

		ResetTicketTTLMinutes: getEnvInt("RESET_TICKET_TTL_MINUTES", 15),

		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		MaxAvatarBytes: int64(getEnvInt("MAX_AVATAR_BYTES", 2<<20)),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+strconv.Itoa(port)),

		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Site Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) ResetTicketTTL() time.Duration {
	return time.Duration(c.ResetTicketTTLMinutes) * time.Minute
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "website")
	pass := getEnv("DB_PASSWORD", "website")
	name := getEnv("DB_NAME", "website")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
