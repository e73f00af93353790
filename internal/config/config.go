package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Planner  PlannerConfig
	Forecast ForecastConfig
	Transfer TransferConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConcurrency int
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	DataDir     string
	DownloadDir string
	LogLevel    string
	LogFormat   string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type StorageConfig struct {
	Enabled    bool
	Driver     string
	LocalDir   string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PlanPrefix string
}

type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

// Credentials returns the inline JSON key or the contents of the key file.
func (c DriveConfig) Credentials() (string, error) {
	if c.CredentialsJSON != "" {
		return c.CredentialsJSON, nil
	}
	if c.CredentialsFile == "" {
		return "", fmt.Errorf("drive credentials are not configured")
	}
	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return "", fmt.Errorf("read drive credentials: %w", err)
	}
	return string(data), nil
}

type PlannerConfig struct {
	Workers        int
	MaxEvaluations int
	// HistoryDays bounds how much sales history a run reads from the database.
	HistoryDays int
	RunTimeout  time.Duration
}

type ForecastConfig struct {
	Seasonality map[time.Month]float64
}

type TransferConfig struct {
	Routes                 []Route
	BaseCost               float64
	FrozenMultiplier       float64
	RefrigeratedMultiplier float64
	Markdown               float64
	OrderTolerance         float64
}

const (
	DefaultSeasonality = "1=0.9,2=0.9,6=1.2,7=1.2,8=1.2,12=1.1"
	DefaultRoutes      = "Zurich:Geneva=120,Zurich:Basel=100,Geneva:Basel=150"
)

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the environment once per process.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		cfg, err := FromViper(viper.GetViper())
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}

		ensureDir(cfg.App.DataDir)
		ensureDir(cfg.App.DownloadDir)
		instance = cfg
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "chainplan")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONCURRENCY", 10)

	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("APP_DOWNLOAD_DIR", "./data/downloads")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_FORECAST_TTL_SECONDS", 3600)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/objects")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "chainplan")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PLAN_PREFIX", "plans")

	v.SetDefault("DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")

	v.SetDefault("PLANNER_WORKERS", 4)
	v.SetDefault("PLANNER_MAX_EVALUATIONS", 100000)
	v.SetDefault("PLANNER_HISTORY_DAYS", 90)
	v.SetDefault("PLANNER_RUN_TIMEOUT", "2m")

	v.SetDefault("FORECAST_SEASONALITY", DefaultSeasonality)

	v.SetDefault("TRANSFER_ROUTES", DefaultRoutes)
	v.SetDefault("TRANSFER_BASE_COST", 200.0)
	v.SetDefault("TRANSFER_FROZEN_MULTIPLIER", 1.5)
	v.SetDefault("TRANSFER_REFRIGERATED_MULTIPLIER", 1.3)
	v.SetDefault("TRANSFER_MARKDOWN", 0.8)
	v.SetDefault("TRANSFER_ORDER_TOLERANCE", 1.2)
}

// FromViper builds a Config from v after applying defaults and AutomaticEnv.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	seasonality, err := ParseSeasonality(v.GetString("FORECAST_SEASONALITY"))
	if err != nil {
		return nil, fmt.Errorf("FORECAST_SEASONALITY: %w", err)
	}
	routes, err := ParseRoutes(v.GetString("TRANSFER_ROUTES"))
	if err != nil {
		return nil, fmt.Errorf("TRANSFER_ROUTES: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("DATABASE_URL"),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			MaxConcurrency: v.GetInt("DB_MAX_CONCURRENCY"),
		},
		App: AppConfig{
			DataDir:     v.GetString("APP_DATA_DIR"),
			DownloadDir: v.GetString("APP_DOWNLOAD_DIR"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:    v.GetBool("STORAGE_ENABLED"),
			Driver:     v.GetString("STORAGE_DRIVER"),
			LocalDir:   v.GetString("STORAGE_LOCAL_DIR"),
			Endpoint:   v.GetString("STORAGE_ENDPOINT"),
			AccessKey:  v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:  v.GetString("STORAGE_SECRET_KEY"),
			Bucket:     v.GetString("STORAGE_BUCKET"),
			Region:     v.GetString("STORAGE_REGION"),
			UseSSL:     v.GetBool("STORAGE_USE_SSL"),
			PlanPrefix: v.GetString("STORAGE_PLAN_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("DRIVE_CREDENTIALS_JSON"),
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
		Planner: PlannerConfig{
			Workers:        v.GetInt("PLANNER_WORKERS"),
			MaxEvaluations: v.GetInt("PLANNER_MAX_EVALUATIONS"),
			HistoryDays:    v.GetInt("PLANNER_HISTORY_DAYS"),
			RunTimeout:     v.GetDuration("PLANNER_RUN_TIMEOUT"),
		},
		Forecast: ForecastConfig{Seasonality: seasonality},
		Transfer: TransferConfig{
			Routes:                 routes,
			BaseCost:               v.GetFloat64("TRANSFER_BASE_COST"),
			FrozenMultiplier:       v.GetFloat64("TRANSFER_FROZEN_MULTIPLIER"),
			RefrigeratedMultiplier: v.GetFloat64("TRANSFER_REFRIGERATED_MULTIPLIER"),
			Markdown:               v.GetFloat64("TRANSFER_MARKDOWN"),
			OrderTolerance:         v.GetFloat64("TRANSFER_ORDER_TOLERANCE"),
		},
	}, nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
