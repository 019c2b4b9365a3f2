package config

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// ConnectDatabase opens the configured SQL backend
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dialector, err := buildDialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Configure GORM logger based on mode
	var gormLogger logger.Interface
	if cfg.IsDev() {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// one writer at a time; sqlite locks the whole file
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db

	if cfg.Database.Driver == "sqlite" {
		log.Printf("✅ Database connected successfully [sqlite:%s]", cfg.Database.SQLitePath)
	} else {
		log.Printf("✅ Database connected successfully [%s %s:%s/%s]",
			cfg.Database.Driver,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
		)
	}

	return db, nil
}

func buildDialector(d DatabaseConfig) (gorm.Dialector, error) {
	switch d.Driver {
	case "mysql", "":
		return mysql.Open(buildDSN(d)), nil
	case "postgres":
		return postgres.Open(buildPostgresDSN(d)), nil
	case "sqlite":
		return sqlite.Open(d.SQLitePath), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", d.Driver)
}

// buildDSN returns the MySQL connection string
func buildDSN(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}

func buildPostgresDSN(d DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName,
	)
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// HealthCheck checks if database is healthy. The memory store has no database and is always healthy.
func HealthCheck() error {
	if AppConfig != nil && AppConfig.StoreDriver == StoreMemory {
		return nil
	}
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
