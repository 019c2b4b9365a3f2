package config

import (
	"context"
	"testing"

	"coop-ledger/internal/adapters/persistence/memory"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/password"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, StoreDatabase, cfg.StoreDriver)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, 15, cfg.JWT.AccessTokenMins)
	assert.Equal(t, 7, cfg.JWT.RefreshTokenDays)
	assert.Equal(t, "coop.ledger", cfg.Events.Exchange)
	assert.Empty(t, cfg.Events.AMQPURL)
	assert.Equal(t, "30 8 * * *", cfg.Jobs.OverdueScan)
	assert.Equal(t, "Asia/Jakarta", cfg.Jobs.Location.String())
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, "lax", cfg.Cookie.SameSite)
	assert.Same(t, cfg, AppConfig)
}

func TestLoad_InvalidAppMode(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "staging")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestLoad_ModePrefixedDatabase(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "prod")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("DEV_DB_HOST", "ignored")
	t.Setenv("PROD_JWT_SECRET", "s1")
	t.Setenv("PROD_JWT_REFRESH_SECRET", "s2")
	t.Setenv("ALLOWED_ORIGINS", "https://coop.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "s1", cfg.JWT.Secret)
	assert.Equal(t, "https://coop.example", cfg.GetAllowedOrigins())
	assert.True(t, cfg.Cookie.Secure)
	assert.Contains(t, buildPostgresDSN(cfg.Database), "host=db.internal port=5432")
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "dev")
	t.Setenv("STORE_DRIVER", "redis")
	_, err := Load()
	assert.Error(t, err)

	resetViper(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DB_DRIVER", "oracle")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	resetViper(t)
	t.Setenv("APP_MODE", "dev")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "3306", DBName: "coop"})
	assert.Equal(t, "u:p@tcp(h:3306)/coop?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

func TestSeeder_AdminAndRates(t *testing.T) {
	password.Cost = bcrypt.MinCost
	ctx := context.Background()
	store := memory.New().Store()

	seeder := NewSeeder(store, SeedConfig{AdminUsername: "admin", AdminPassword: "admin123456"})
	require.NoError(t, seeder.Run(ctx))
	require.NoError(t, seeder.Run(ctx))

	admins, err := store.Users.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, admins)

	rates, err := store.Rates.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rates, len(DefaultRates))
}

func TestSeeder_NoPasswordNoAdmin(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Store()

	require.NoError(t, NewSeeder(store, SeedConfig{AdminUsername: "admin"}).Run(ctx))

	admins, err := store.Users.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, admins)
}
