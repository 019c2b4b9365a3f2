package ledger_test

import (
	"testing"
	"time"

	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func application(principal string, months int, rate string) ledger.LoanApplication {
	return ledger.LoanApplication{
		MemberID:           "member-1",
		Principal:          dec(principal),
		TenorMonths:        months,
		MonthlyRatePercent: dec(rate),
		AppliedAt:          time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestOriginate_ReferenceScenario(t *testing.T) {
	loan, err := ledger.Originate(application("1200000", 12, "2"))
	require.NoError(t, err)

	assert.Equal(t, domain.LoanPending, loan.Status)
	assert.Equal(t, 12, loan.Tenor.Months)
	require.Len(t, loan.Installments, 12)

	tenor := domain.Tenor{Months: 12, MonthlyRatePercent: dec("2")}
	assert.True(t, ledger.TotalInterest(loan.Principal, tenor).Equal(dec("288000")))

	for _, inst := range loan.Installments {
		assert.Equal(t, domain.InstallmentUnpaid, inst.Status)
		assert.Equal(t, "124000.00", inst.AmountDue.StringFixed(2))
	}
}

func TestOriginate_SumWithinRounding(t *testing.T) {
	cases := []struct {
		principal string
		months    int
		rate      string
	}{
		{"1000000", 7, "1.5"},
		{"333333", 9, "0.75"},
		{"1000", 3, "0"},
		{"250000", 24, "1.25"},
	}

	for _, tc := range cases {
		loan, err := ledger.Originate(application(tc.principal, tc.months, tc.rate))
		require.NoError(t, err)
		require.Len(t, loan.Installments, tc.months)

		p := dec(tc.principal)
		n := decimal.NewFromInt(int64(tc.months))
		expectedTotal := p.Add(p.Mul(dec(tc.rate)).Div(decimal.NewFromInt(100)).Mul(n))
		expectedEach := expectedTotal.Div(n).Round(2)

		sum := decimal.Zero
		for _, inst := range loan.Installments {
			assert.True(t, inst.AmountDue.Equal(expectedEach))
			sum = sum.Add(inst.AmountDue)
		}

		tolerance := dec("0.01").Mul(n)
		assert.True(t, sum.Sub(expectedTotal).Abs().LessThanOrEqual(tolerance),
			"sum %s vs %s", sum, expectedTotal)
	}
}

func TestOriginate_ZeroInterestAccepted(t *testing.T) {
	loan, err := ledger.Originate(application("1200", 12, "0"))
	require.NoError(t, err)
	for _, inst := range loan.Installments {
		assert.Equal(t, "100.00", inst.AmountDue.StringFixed(2))
	}
}

func TestOriginate_RejectsInvalidInput(t *testing.T) {
	_, err := ledger.Originate(application("0", 12, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = ledger.Originate(application("1000.005", 12, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = ledger.Originate(application("1000", 0, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidTenor)

	_, err = ledger.Originate(application("1000", 12, "-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestOriginate_DueDatesMonthly(t *testing.T) {
	loan, err := ledger.Originate(application("1200000", 12, "2"))
	require.NoError(t, err)

	sorted := ledger.SortedInstallments(loan)
	require.Len(t, sorted, 12)
	for i, inst := range sorted {
		assert.Equal(t, i+1, inst.Seq)
		want := time.Date(2025, time.January+time.Month(i+1), 15, 0, 0, 0, 0, time.UTC)
		assert.True(t, inst.DueDate.Equal(want), "installment %d due %s, want %s", inst.Seq, inst.DueDate, want)
	}
}

func TestDueDate_ClampsToLastDayOfMonth(t *testing.T) {
	appliedAt := time.Date(2025, time.January, 31, 14, 0, 0, 0, time.UTC)

	expected := []time.Time{
		time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, want := range expected {
		assert.True(t, ledger.DueDate(appliedAt, i+1).Equal(want), "month %d", i+1)
	}
}

func TestDueDate_LeapYearAndYearRollover(t *testing.T) {
	appliedAt := time.Date(2023, time.December, 30, 0, 0, 0, 0, time.UTC)

	assert.True(t, ledger.DueDate(appliedAt, 1).Equal(time.Date(2024, time.January, 30, 0, 0, 0, 0, time.UTC)))
	assert.True(t, ledger.DueDate(appliedAt, 2).Equal(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))
	assert.True(t, ledger.DueDate(appliedAt, 14).Equal(time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)))
}
