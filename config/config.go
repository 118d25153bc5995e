package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"estatenexy/models"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	Redis     *redis.Client
	AppConfig Config
	envLoaded bool
)

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	From     string `json:"from"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`

	EncryptionKey string `json:"-"`
	JWTSecret     string `json:"-"`
	SentryDSN     string `json:"-"`

	SMTP SMTPConfig `json:"smtp"`

	OpenAIAPIKey string `json:"-"`
	OpenAIModel  string `json:"openai_model"`

	MatchingServiceURL string `json:"matching_service_url"`

	// Scheduler tuning
	FollowupInterval time.Duration `json:"followup_interval"`
	GhostDelay       time.Duration `json:"ghost_delay"`
	SessionCacheTTL  time.Duration `json:"session_cache_ttl"`
	DrainTimeout     time.Duration `json:"drain_timeout"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "estatenexy"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("FROM_EMAIL", "no-reply@estatenexy.io"),
		},

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		MatchingServiceURL: getEnv("MATCHING_SERVICE_URL", ""),

		FollowupInterval: getEnvAsDuration("FOLLOWUP_INTERVAL", 30*time.Minute),
		GhostDelay:       getEnvAsDuration("GHOST_DELAY", 2*time.Hour),
		SessionCacheTTL:  getEnvAsDuration("SESSION_CACHE_TTL", 15*time.Minute),
		DrainTimeout:     getEnvAsDuration("DRAIN_TIMEOUT", 10*time.Second),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if AppConfig.Environment == "production" && AppConfig.SentryDSN == "" {
		return fmt.Errorf("SENTRY_DSN is required in production")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to the database")
	log.Println("🔄 Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.CreateDefaultFollowupTemplates(DB); err != nil {
		return fmt.Errorf("seeding follow-up templates failed: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

func ConnectRedis() error {
	Redis = redis.NewClient(&redis.Options{
		Addr:     AppConfig.RedisAddr,
		Password: AppConfig.RedisPassword,
		DB:       AppConfig.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	log.Println("✅ Successfully connected to redis")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return d
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Redis: %s/%d", AppConfig.RedisAddr, AppConfig.RedisDB)
	log.Printf("Follow-up interval: %s, ghost delay: %s",
		AppConfig.FollowupInterval, AppConfig.GhostDelay)
	log.Printf("Inference: enabled(%t) model(%s)",
		AppConfig.OpenAIAPIKey != "", AppConfig.OpenAIModel)
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.BotCredential{},
		&models.Lead{},
		&models.FollowupTemplate{},
	)
}
