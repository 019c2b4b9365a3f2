package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateService manages the tenor/rate table used to pre-fill loan applications
type RateService struct {
	rateRepo repositories.RateRepository
	events   pubsub.Publisher
	now      func() time.Time
}

// NewRateService creates a new rate service
func NewRateService(rateRepo repositories.RateRepository, events pubsub.Publisher) *RateService {
	return &RateService{rateRepo: rateRepo, events: events, now: time.Now}
}

// RateInput creates or replaces a rate
type RateInput struct {
	Months             int             `json:"months"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent"`
}

func (in RateInput) validate() error {
	if in.Months <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidTenor, in.Months)
	}
	if in.MonthlyRatePercent.IsNegative() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRate, in.MonthlyRatePercent)
	}
	return nil
}

// List returns the rate table
func (s *RateService) List(ctx context.Context, actor domain.Actor) ([]*RateResponse, error) {
	if err := actor.Require(domain.ActionViewRates, ""); err != nil {
		return nil, err
	}
	rates, err := s.rateRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RateResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, NewRateResponse(r))
	}
	return out, nil
}

// Get is used by loan origination to resolve a rate id
func (s *RateService) Get(ctx context.Context, id string) (*domain.Rate, error) {
	return s.rateRepo.GetByID(ctx, id)
}

// Create adds a tenor to the rate table (admin only)
func (s *RateService) Create(ctx context.Context, actor domain.Actor, input RateInput) (*RateResponse, error) {
	if err := actor.Require(domain.ActionManageRates, ""); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	rate := &domain.Rate{
		ID:                 uuid.NewString(),
		Months:             input.Months,
		MonthlyRatePercent: input.MonthlyRatePercent,
	}
	if err := s.rateRepo.Create(ctx, rate); err != nil {
		return nil, err
	}

	log.Printf("✅ Rate created: %d months at %s%%", rate.Months, rate.MonthlyRatePercent)
	s.publish(rate.ID, pubsub.KindCreated)
	return NewRateResponse(rate), nil
}

// Update changes a rate; existing loans keep the terms they were issued with
func (s *RateService) Update(ctx context.Context, actor domain.Actor, id string, input RateInput) (*RateResponse, error) {
	if err := actor.Require(domain.ActionManageRates, ""); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	rate, err := s.rateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rate.Months = input.Months
	rate.MonthlyRatePercent = input.MonthlyRatePercent
	if err := s.rateRepo.Update(ctx, rate); err != nil {
		return nil, err
	}

	s.publish(rate.ID, pubsub.KindUpdated)
	return NewRateResponse(rate), nil
}

// Delete removes a rate (admin only)
func (s *RateService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := actor.Require(domain.ActionManageRates, ""); err != nil {
		return err
	}
	if err := s.rateRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(id, pubsub.KindDeleted)
	return nil
}

func (s *RateService) publish(id, kind string) {
	s.events.Publish(pubsub.Event{Path: pubsub.RatePath(id), Kind: kind, At: s.now()})
}
