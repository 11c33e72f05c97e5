// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthProviderLocal    = "local"
	AuthProviderFirebase = "firebase"

	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Firebase  FirebaseConfig
	Gemini    GeminiConfig
	Vision    VisionConfig
	Placement PlacementConfig
	Catalog   CatalogConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	AllowOrigins []string
}

// DatabaseConfig はPostgreSQL接続設定です。InstanceName が設定されている場合はCloud SQLのUnixソケットを使います。
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	InstanceName  string
	RunMigrations bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type AuthConfig struct {
	Provider    string
	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	MaxSessions int
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

// GeminiConfig はGemini APIクライアントの設定です。
// APIKey が空の場合はADC（Vertex AI）を使用します。
type GeminiConfig struct {
	APIKey string
	Model  string
}

type VisionConfig struct {
	Enabled bool
}

// ControlRange は手動コントロール1軸のクランプ範囲です。
type ControlRange struct {
	Min float64
	Max float64
}

// PlacementConfig はAR配置フローの設定です。
type PlacementConfig struct {
	Timeout            time.Duration
	RatePerMinute      int
	ScaleMinConfidence float64
	InitialZ           float64
	SessionTTL         time.Duration
	VerticalRange      ControlRange
	YawDegreesRange    ControlRange
	ScaleRange         ControlRange
}

type CatalogConfig struct {
	Backend  string
	CacheTTL time.Duration
}

// Load は .env（存在すれば）と環境変数から設定を読み込みます。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      os.Getenv("DB_PASSWORD"),
			Name:          getEnv("DB_NAME", "storefront"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			InstanceName:  os.Getenv("INSTANCE_CONNECTION_NAME"),
			RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Provider:    getEnv("AUTH_PROVIDER", AuthProviderLocal),
			JWTSecret:   os.Getenv("JWT_SECRET"),
			AccessTTL:   getEnvAsDuration("AUTH_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:  getEnvAsDuration("AUTH_REFRESH_TTL", 7*24*time.Hour),
			MaxSessions: getEnvAsInt("AUTH_MAX_SESSIONS", 5),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Vision: VisionConfig{
			Enabled: getEnvAsBool("VISION_HINTS_ENABLED", false),
		},
		Placement: PlacementConfig{
			Timeout:            getEnvAsDuration("PLACEMENT_TIMEOUT", 20*time.Second),
			RatePerMinute:      getEnvAsInt("PLACEMENT_RATE_PER_MINUTE", 30),
			ScaleMinConfidence: getEnvAsFloat("PLACEMENT_SCALE_MIN_CONFIDENCE", 0.7),
			InitialZ:           getEnvAsFloat("PLACEMENT_INITIAL_Z", -5),
			SessionTTL:         getEnvAsDuration("PLACEMENT_SESSION_TTL", 30*time.Minute),
			VerticalRange: ControlRange{
				Min: getEnvAsFloat("PLACEMENT_CONTROL_VERTICAL_MIN", -5),
				Max: getEnvAsFloat("PLACEMENT_CONTROL_VERTICAL_MAX", 5),
			},
			YawDegreesRange: ControlRange{
				Min: getEnvAsFloat("PLACEMENT_CONTROL_YAW_MIN", -180),
				Max: getEnvAsFloat("PLACEMENT_CONTROL_YAW_MAX", 180),
			},
			ScaleRange: ControlRange{
				Min: getEnvAsFloat("PLACEMENT_CONTROL_SCALE_MIN", 0.1),
				Max: getEnvAsFloat("PLACEMENT_CONTROL_SCALE_MAX", 3),
			},
		},
		Catalog: CatalogConfig{
			Backend:  getEnv("CATALOG_BACKEND", BackendPostgres),
			CacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Auth.Provider {
	case AuthProviderLocal:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=%s", AuthProviderLocal)
		}
	case AuthProviderFirebase:
		if c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when AUTH_PROVIDER=%s", AuthProviderFirebase)
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}
	switch c.Catalog.Backend {
	case BackendPostgres:
	case BackendFirestore:
		if c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when CATALOG_BACKEND=%s", BackendFirestore)
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.Catalog.Backend)
	}
	if c.Placement.Timeout <= 0 {
		return fmt.Errorf("PLACEMENT_TIMEOUT must be positive")
	}
	if c.Placement.ScaleMinConfidence < 0 || c.Placement.ScaleMinConfidence > 1 {
		return fmt.Errorf("PLACEMENT_SCALE_MIN_CONFIDENCE must be within [0,1]")
	}
	for name, r := range map[string]ControlRange{
		"VERTICAL": c.Placement.VerticalRange,
		"YAW":      c.Placement.YawDegreesRange,
		"SCALE":    c.Placement.ScaleRange,
	} {
		if r.Min > r.Max {
			return fmt.Errorf("PLACEMENT_CONTROL_%s_MIN must not exceed PLACEMENT_CONTROL_%s_MAX", name, name)
		}
	}
	if c.Placement.ScaleRange.Min <= 0 {
		return fmt.Errorf("PLACEMENT_CONTROL_SCALE_MIN must be positive")
	}
	return nil
}

// UsesFirebase は Firebase Admin SDK の初期化が必要かどうかを返します。
func (c *Config) UsesFirebase() bool {
	return c.Auth.Provider == AuthProviderFirebase || c.Catalog.Backend == BackendFirestore
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
