package config

import (
	"context"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultRates pre-fill the rate table on first run
var DefaultRates = []struct {
	Months  int
	Percent string
}{
	{3, "1.00"},
	{6, "1.10"},
	{12, "1.25"},
	{24, "1.50"},
}

// Seeder handles first-run seeding over any ledger store
type Seeder struct {
	store *repositories.Store
	seed  SeedConfig
}

// NewSeeder creates a new seeder instance
func NewSeeder(store *repositories.Store, seed SeedConfig) *Seeder {
	return &Seeder{store: store, seed: seed}
}

// Run executes all seeders. Failures are logged, never fatal.
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Running seeders...")

	if err := s.seedAdminUser(ctx); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}
	if err := s.seedRates(ctx); err != nil {
		log.Printf("⚠️ Rate seeder skipped: %v", err)
	}

	log.Println("✅ Seeding completed")
	return nil
}

// seedAdminUser creates the first admin when none exists and a password was configured
func (s *Seeder) seedAdminUser(ctx context.Context) error {
	count, err := s.store.Users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if s.seed.AdminPassword == "" {
		log.Println("⚠️ No admin exists and SEED_ADMIN_PASSWORD is empty")
		log.Println("   Create one with: go run ./cmd/adduser -role admin")
		return nil
	}

	admin, err := services.BuildUser(&services.CreateUserInput{
		Username: s.seed.AdminUsername,
		FullName: "Administrator",
		Password: s.seed.AdminPassword,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		return err
	}
	if err := s.store.Users.Create(ctx, admin); err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Username)
	return nil
}

func (s *Seeder) seedRates(ctx context.Context) error {
	existing, err := s.store.Rates.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now()
	for _, r := range DefaultRates {
		rate := &domain.Rate{
			ID:                 uuid.NewString(),
			Months:             r.Months,
			MonthlyRatePercent: decimal.RequireFromString(r.Percent),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.store.Rates.Create(ctx, rate); err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d default rates", len(DefaultRates))
	return nil
}
