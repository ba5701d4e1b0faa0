package installment

import (
	"errors"
	"testing"

	"checkout-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandard_Plan(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		months       int
		wantDown     int64
		wantInterest int64
		wantPayable  int64
		wantMonthly  int64
	}{
		{
			name:         "12 months interest free",
			total:        19_800_000,
			months:       12,
			wantDown:     5_940_000,
			wantInterest: 0,
			wantPayable:  13_860_000,
			wantMonthly:  1_155_000,
		},
		{
			name:         "18 months at 5 percent flat",
			total:        19_800_000,
			months:       18,
			wantDown:     5_940_000,
			wantInterest: 693_000,
			wantPayable:  14_553_000,
			wantMonthly:  808_500,
		},
		{
			name:         "24 months at 10 percent flat",
			total:        19_800_000,
			months:       24,
			wantDown:     5_940_000,
			wantInterest: 1_386_000,
			wantPayable:  15_246_000,
			wantMonthly:  635_250,
		},
		{
			name:         "monthly payment rounds half up",
			total:        1_000,
			months:       3,
			wantDown:     300,
			wantInterest: 0,
			wantPayable:  700,
			wantMonthly:  233,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Standard.Plan(tt.total, tt.months)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDown, plan.DownPayment)
			assert.Equal(t, tt.total-tt.wantDown, plan.Principal)
			assert.Equal(t, tt.wantInterest, plan.TotalInterest)
			assert.Equal(t, tt.wantPayable, plan.TotalPayable)
			assert.Equal(t, tt.wantMonthly, plan.MonthlyPayment)
		})
	}
}

func TestPolicy_InvalidTerm(t *testing.T) {
	for _, months := range []int{0, -6, 13, 15, 36} {
		_, err := Standard.Plan(10_000_000, months)
		assert.True(t, errors.Is(err, domain.ErrInvalidTerm), "months=%d", months)
	}
}

func TestCreditCard_UsesSameCalculation(t *testing.T) {
	plan, err := CreditCard.Plan(19_800_000, 24)
	require.NoError(t, err)

	assert.Equal(t, int64(0), plan.DownPayment)
	assert.Equal(t, int64(19_800_000), plan.Principal)
	assert.Equal(t, int64(0), plan.TotalInterest)
	assert.Equal(t, int64(825_000), plan.MonthlyPayment)
}

func TestPolicy_Consistency(t *testing.T) {
	totals := []int64{1, 7, 999_999, 19_800_000, 458_000_001, 1_099_999_999}
	for _, policy := range []Policy{Standard, CreditCard} {
		for _, months := range policy.Terms() {
			for _, total := range totals {
				plan, err := policy.Plan(total, months)
				require.NoError(t, err)

				assert.Equal(t, total, plan.DownPayment+plan.Principal)
				assert.Equal(t, plan.Principal+plan.TotalInterest, plan.TotalPayable)

				paid := plan.MonthlyPayment*int64(months) + plan.DownPayment
				diff := paid - (plan.TotalPayable + plan.DownPayment)
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqual(t, diff, int64(months), "total=%d months=%d", total, months)
			}
		}
	}
}

func TestPolicy_Terms(t *testing.T) {
	terms := Standard.Terms()
	assert.Len(t, terms, 14)
	assert.Equal(t, 1, terms[0])
	assert.Equal(t, []int{12, 18, 24}, terms[11:])
}
