package installment

import (
	"fmt"
	"sort"

	"checkout-service/internal/domain"
	"checkout-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// Policy is a down-payment ratio plus a flat interest rate per term. Terms of
// up to ShortTermMaxMonths use ShortTermRate; longer terms must appear in Rates.
type Policy struct {
	DownPaymentRatio   decimal.Decimal
	ShortTermMaxMonths int
	ShortTermRate      decimal.Decimal
	Rates              map[int]decimal.Decimal
}

var Standard = Policy{
	DownPaymentRatio:   decimal.RequireFromString("0.3"),
	ShortTermMaxMonths: 12,
	ShortTermRate:      decimal.Zero,
	Rates: map[int]decimal.Decimal{
		18: decimal.RequireFromString("0.05"),
		24: decimal.RequireFromString("0.10"),
	},
}

// CreditCard is the bank-card variant: nothing down, no interest, same terms.
var CreditCard = Policy{
	DownPaymentRatio:   decimal.Zero,
	ShortTermMaxMonths: 12,
	ShortTermRate:      decimal.Zero,
	Rates: map[int]decimal.Decimal{
		18: decimal.Zero,
		24: decimal.Zero,
	},
}

type Plan struct {
	Months         int   `json:"months"`
	DownPayment    int64 `json:"downPayment"`
	Principal      int64 `json:"principal"`
	TotalInterest  int64 `json:"totalInterest"`
	TotalPayable   int64 `json:"totalPayable"`
	MonthlyPayment int64 `json:"monthlyPayment"`
	// RatePercent is the flat rate for the whole term, in percent.
	RatePercent string `json:"ratePercent"`
}

func (p Policy) Rate(months int) (decimal.Decimal, error) {
	if months >= 1 && months <= p.ShortTermMaxMonths {
		return p.ShortTermRate, nil
	}
	if r, ok := p.Rates[months]; ok {
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %d months", domain.ErrInvalidTerm, months)
}

// Plan splits total into a down payment and a flat-rate schedule. Monthly
// payments are rounded individually, so months*MonthlyPayment can differ from
// TotalPayable by up to months-1 units.
func (p Policy) Plan(total int64, months int) (Plan, error) {
	rate, err := p.Rate(months)
	if err != nil {
		return Plan{}, err
	}

	down := pricing.Round(decimal.NewFromInt(total).Mul(p.DownPaymentRatio))
	principal := total - down
	interest := pricing.Round(decimal.NewFromInt(principal).Mul(rate))
	payable := principal + interest
	monthly := pricing.Round(decimal.NewFromInt(payable).Div(decimal.NewFromInt(int64(months))))

	return Plan{
		Months:         months,
		DownPayment:    down,
		Principal:      principal,
		TotalInterest:  interest,
		TotalPayable:   payable,
		MonthlyPayment: monthly,
		RatePercent:    rate.Mul(decimal.NewFromInt(100)).String(),
	}, nil
}

// Terms lists the supported terms in ascending order.
func (p Policy) Terms() []int {
	terms := make([]int, 0, p.ShortTermMaxMonths+len(p.Rates))
	for m := 1; m <= p.ShortTermMaxMonths; m++ {
		terms = append(terms, m)
	}
	long := make([]int, 0, len(p.Rates))
	for m := range p.Rates {
		if m > p.ShortTermMaxMonths {
			long = append(long, m)
		}
	}
	sort.Ints(long)
	return append(terms, long...)
}

func PolicyFor(channel domain.InstallmentChannel) Policy {
	if channel == domain.ChannelCreditCard {
		return CreditCard
	}
	return Standard
}
