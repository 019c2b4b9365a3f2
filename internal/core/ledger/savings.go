// Package ledger holds the savings, loan and report computations.
// Everything here is pure: callers load state, call in, and persist the result.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"coop-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ValidateNominal rejects zero and negative amounts, and amounts finer than a cent
func ValidateNominal(nominal decimal.Decimal) error {
	if !nominal.IsPositive() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, nominal.String())
	}
	return ValidateCents(nominal)
}

// ValidateCents rejects amounts with more than two decimal places.
// Stored columns are decimal(15,2); rounding each value on write would let totals drift from their entries.
func ValidateCents(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s has more than 2 decimal places", domain.ErrInvalidAmount, amount.String())
	}
	return nil
}

// ApplyEntry adds entry to acct and moves Total by the signed nominal.
// acct is left untouched when an error is returned.
func ApplyEntry(acct *domain.SavingsAccount, entry domain.SavingsEntry) error {
	if !entry.Kind.Valid() {
		return fmt.Errorf("%w: unknown entry kind %q", domain.ErrInvalidInput, entry.Kind)
	}
	if err := ValidateNominal(entry.Nominal); err != nil {
		return err
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: entry id is required", domain.ErrInvalidInput)
	}
	if _, exists := acct.Entries[entry.ID]; exists {
		return fmt.Errorf("%w: entry %s", domain.ErrDuplicate, entry.ID)
	}

	if entry.Kind == domain.EntryWithdrawal && entry.Nominal.GreaterThan(acct.Total) {
		return &domain.InsufficientFundsError{Available: acct.Total, Requested: entry.Nominal}
	}

	if acct.Entries == nil {
		acct.Entries = make(map[string]domain.SavingsEntry)
	}
	acct.Entries[entry.ID] = entry
	acct.Total = acct.Total.Add(entry.Kind.Signed(entry.Nominal))
	return nil
}

// RevertEntry removes an entry and undoes its effect on Total
func RevertEntry(acct *domain.SavingsAccount, entryID string) (domain.SavingsEntry, error) {
	entry, ok := acct.Entries[entryID]
	if !ok {
		return domain.SavingsEntry{}, fmt.Errorf("%w: savings entry %s", domain.ErrNotFound, entryID)
	}

	newTotal := acct.Total.Sub(entry.Kind.Signed(entry.Nominal))
	if newTotal.IsNegative() {
		return domain.SavingsEntry{}, fmt.Errorf("%w: total %s, entry %s",
			domain.ErrWouldGoNegative, acct.Total.StringFixed(2), entry.Nominal.StringFixed(2))
	}

	delete(acct.Entries, entryID)
	acct.Total = newTotal
	return entry, nil
}

// EntrySum is the signed sum of all entries: deposits minus withdrawals
func EntrySum(acct *domain.SavingsAccount) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range acct.Entries {
		sum = sum.Add(e.Kind.Signed(e.Nominal))
	}
	return sum
}

// Reconcile returns Total minus the entry sum; zero means the account is consistent
func Reconcile(acct *domain.SavingsAccount) decimal.Decimal {
	return acct.Total.Sub(EntrySum(acct))
}

// SortedEntries returns entries newest first, ties broken by id
func SortedEntries(acct *domain.SavingsAccount) []domain.SavingsEntry {
	out := make([]domain.SavingsEntry, 0, len(acct.Entries))
	for _, e := range acct.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EntryTime truncates t to the minute, the resolution savings entries are recorded at
func EntryTime(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
