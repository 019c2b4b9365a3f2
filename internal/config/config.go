package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDatabase = "database"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	AppMode     string
	Port        string
	StoreDriver string
	Database    DatabaseConfig
	JWT         JWTConfig
	Cookie      CookieConfig
	Events      EventsConfig
	Jobs        JobsConfig
	Seed        SeedConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string // mysql, postgres or sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds auth cookie attributes
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// EventsConfig holds the AMQP forwarding target. An empty URL disables forwarding.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// JobsConfig holds the cron schedules
type JobsConfig struct {
	OverdueScan    string
	ReportSnapshot string
	Timezone       string
	Location       *time.Location
}

// SeedConfig holds first-run seeding options
type SeedConfig struct {
	AdminUsername string
	AdminPassword string
}

// Global config instance
var AppConfig *Config

const (
	defaultSecret        = "default_secret"
	defaultRefreshSecret = "default_refresh_secret"
)

func setDefaults() {
	viper.SetDefault("APP_MODE", "dev")
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("STORE_DRIVER", StoreDatabase)
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("SQLITE_PATH", "coop-ledger.db")
	viper.SetDefault("ACCESS_TOKEN_MINUTES", 15)
	viper.SetDefault("REFRESH_TOKEN_DAYS", 7)
	viper.SetDefault("AMQP_EXCHANGE", "coop.ledger")
	viper.SetDefault("OVERDUE_SCAN_SCHEDULE", "30 8 * * *")
	viper.SetDefault("REPORT_SNAPSHOT_SCHEDULE", "0 23 * * *")
	viper.SetDefault("TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("SEED_ADMIN_USERNAME", "admin")
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using environment variables")
	}

	setDefaults()
	viper.AutomaticEnv()

	// Trim spaces for Windows compatibility
	appMode := strings.TrimSpace(viper.GetString("APP_MODE"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	storeDriver := strings.ToLower(strings.TrimSpace(viper.GetString("STORE_DRIVER")))
	if storeDriver != StoreDatabase && storeDriver != StoreMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER: '%s' (must be '%s' or '%s')", storeDriver, StoreDatabase, StoreMemory)
	}

	db, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}
	jwtCfg, err := loadJWTConfig(appMode)
	if err != nil {
		return nil, err
	}
	jobs, err := loadJobsConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:     appMode,
		Port:        viper.GetString("PORT"),
		StoreDriver: storeDriver,
		Database:    db,
		JWT:         jwtCfg,
		Cookie:      loadCookieConfig(appMode),
		Events: EventsConfig{
			AMQPURL:  viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
		Jobs: jobs,
		Seed: SeedConfig{
			AdminUsername: viper.GetString("SEED_ADMIN_USERNAME"),
			AdminPassword: viper.GetString("SEED_ADMIN_PASSWORD"),
		},
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s, STORE: %s]", appMode, storeDriver)
	return config, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := modePrefix(mode)

	driver := strings.ToLower(strings.TrimSpace(viper.GetString("DB_DRIVER")))
	defaultPort := "3306"
	switch driver {
	case "mysql":
	case "postgres":
		defaultPort = "5432"
	case "sqlite":
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be mysql, postgres or sqlite)", driver)
	}

	return DatabaseConfig{
		Driver:     driver,
		Host:       getString(prefix+"DB_HOST", "localhost"),
		Port:       getString(prefix+"DB_PORT", defaultPort),
		User:       getString(prefix+"DB_USER", "root"),
		Password:   viper.GetString(prefix + "DB_PASS"),
		DBName:     getString(prefix+"DB_NAME", "coop_ledger"),
		SQLitePath: viper.GetString("SQLITE_PATH"),
	}, nil
}

// loadJWTConfig loads JWT config based on mode. The mode-prefixed key wins over the plain one.
func loadJWTConfig(mode string) (JWTConfig, error) {
	prefix := modePrefix(mode)

	cfg := JWTConfig{
		Secret:           getString(prefix+"JWT_SECRET", getString("JWT_SECRET", defaultSecret)),
		RefreshSecret:    getString(prefix+"JWT_REFRESH_SECRET", getString("JWT_REFRESH_SECRET", defaultRefreshSecret)),
		AccessTokenMins:  viper.GetInt("ACCESS_TOKEN_MINUTES"),
		RefreshTokenDays: viper.GetInt("REFRESH_TOKEN_DAYS"),
	}

	if mode == "prod" && (cfg.Secret == defaultSecret || cfg.RefreshSecret == defaultRefreshSecret) {
		return JWTConfig{}, fmt.Errorf("JWT secrets must be set in prod mode")
	}
	if cfg.AccessTokenMins <= 0 || cfg.RefreshTokenDays <= 0 {
		return JWTConfig{}, fmt.Errorf("token lifetimes must be positive (ACCESS_TOKEN_MINUTES=%d, REFRESH_TOKEN_DAYS=%d)",
			cfg.AccessTokenMins, cfg.RefreshTokenDays)
	}
	return cfg, nil
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)
	viper.SetDefault(prefix+"COOKIE_SECURE", mode == "prod")

	return CookieConfig{
		Secure:   viper.GetBool(prefix + "COOKIE_SECURE"),
		SameSite: getString("COOKIE_SAMESITE", "lax"),
		Domain:   viper.GetString("COOKIE_DOMAIN"),
	}
}

func loadJobsConfig() (JobsConfig, error) {
	tz := viper.GetString("TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return JobsConfig{}, fmt.Errorf("invalid TIMEZONE '%s': %w", tz, err)
	}
	return JobsConfig{
		OverdueScan:    viper.GetString("OVERDUE_SCAN_SCHEDULE"),
		ReportSnapshot: viper.GetString("REPORT_SNAPSHOT_SCHEDULE"),
		Timezone:       tz,
		Location:       loc,
	}, nil
}

// getString returns the viper value for key, or defaultValue when unset or blank
func getString(key, defaultValue string) string {
	if value := strings.TrimSpace(viper.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := viper.GetString("ALLOWED_ORIGINS")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return origins
}
