package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/ledger"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsService records deposits and withdrawals through the atomic ledger operations
type SavingsService struct {
	savingsRepo repositories.SavingsRepository
	userRepo    repositories.UserRepository
	events      pubsub.Publisher
	now         func() time.Time
}

// NewSavingsService creates a new savings service
func NewSavingsService(
	savingsRepo repositories.SavingsRepository,
	userRepo repositories.UserRepository,
	events pubsub.Publisher,
) *SavingsService {
	return &SavingsService{
		savingsRepo: savingsRepo,
		userRepo:    userRepo,
		events:      events,
		now:         time.Now,
	}
}

// RecordTransaction appends a deposit or withdrawal to the member's account,
// opening the account on first use
func (s *SavingsService) RecordTransaction(
	ctx context.Context,
	actor domain.Actor,
	memberID string,
	kind domain.EntryKind,
	nominal decimal.Decimal,
) (*SavingsResponse, error) {
	if err := actor.Require(domain.ActionRecordSavings, memberID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entry kind %q", domain.ErrInvalidInput, kind)
	}
	if err := ledger.ValidateNominal(nominal); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	now := s.now()
	entry := domain.SavingsEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		Nominal:    nominal,
		OccurredAt: ledger.EntryTime(now),
		RecordedBy: actor.ID,
	}

	acct, err := s.savingsRepo.ApplyToMember(ctx, memberID, func(a *domain.SavingsAccount) error {
		if err := ledger.ApplyEntry(a, entry); err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ %s of %s recorded for member %s (total %s)",
		kind, nominal.StringFixed(2), memberID, acct.Total.StringFixed(2))
	s.publish(acct.ID, pubsub.KindUpdated, acct.Total)
	return NewSavingsResponse(acct), nil
}

// DeleteTransaction removes one entry and reverses its effect on the total
func (s *SavingsService) DeleteTransaction(ctx context.Context, actor domain.Actor, accountID, entryID string) (*SavingsResponse, error) {
	if err := actor.Require(domain.ActionDeleteEntry, ""); err != nil {
		return nil, err
	}

	now := s.now()
	acct, err := s.savingsRepo.ApplyToAccount(ctx, accountID, func(a *domain.SavingsAccount) error {
		if _, err := ledger.RevertEntry(a, entryID); err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⚠️ Savings entry %s removed from account %s by %s", entryID, accountID, actor.ID)
	s.publish(acct.ID, pubsub.KindUpdated, acct.Total)
	return NewSavingsResponse(acct), nil
}

// DeleteAccount removes the account together with its entries
func (s *SavingsService) DeleteAccount(ctx context.Context, actor domain.Actor, accountID string) error {
	if err := actor.Require(domain.ActionDeleteSavings, ""); err != nil {
		return err
	}
	if err := s.savingsRepo.Delete(ctx, accountID); err != nil {
		return err
	}
	log.Printf("⚠️ Savings account %s deleted by %s", accountID, actor.ID)
	s.publish(accountID, pubsub.KindDeleted, nil)
	return nil
}

// GetMine returns the caller's account, or an empty one if nothing was saved yet
func (s *SavingsService) GetMine(ctx context.Context, actor domain.Actor) (*SavingsResponse, error) {
	if err := actor.Require(domain.ActionViewSavings, actor.ID); err != nil {
		return nil, err
	}
	acct, err := s.savingsRepo.GetByMember(ctx, actor.ID)
	if err != nil {
		if isNotFound(err) {
			return &SavingsResponse{UserID: actor.ID, Total: decimal.Zero, Entries: []EntryResponse{}}, nil
		}
		return nil, err
	}
	return NewSavingsResponse(acct), nil
}

// GetByID returns an account visible to actor
func (s *SavingsService) GetByID(ctx context.Context, actor domain.Actor, accountID string) (*SavingsResponse, error) {
	acct, err := s.savingsRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(domain.ActionViewSavings, acct.UserID); err != nil {
		return nil, err
	}
	return NewSavingsResponse(acct), nil
}

// History returns an account's entries newest first
func (s *SavingsService) History(ctx context.Context, actor domain.Actor, accountID string) ([]EntryResponse, error) {
	acct, err := s.GetByID(ctx, actor, accountID)
	if err != nil {
		return nil, err
	}
	return acct.Entries, nil
}

// List returns every account (staff only)
func (s *SavingsService) List(ctx context.Context, actor domain.Actor) ([]*SavingsResponse, error) {
	if err := actor.Require(domain.ActionListSavings, ""); err != nil {
		return nil, err
	}
	accts, err := s.savingsRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*SavingsResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, NewSavingsResponse(a))
	}
	return out, nil
}

func (s *SavingsService) publish(id, kind string, total interface{}) {
	e := pubsub.Event{Path: pubsub.SavingsPath(id), Kind: kind, At: s.now()}
	if total != nil {
		e.Data = map[string]interface{}{"total": total}
	}
	s.events.Publish(e)
}
