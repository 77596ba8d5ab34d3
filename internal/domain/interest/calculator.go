// Package interest prices loan applications. Everything here is pure: the
// same inputs always give the same figures.
package interest

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/shopspring/decimal"
)

const (
	LoanTypeProperty  = "PROPERTY"
	LoanTypeEducation = "EDUCATION"
	LoanTypeGold      = "GOLD"
	LoanTypeVehicle   = "VEHICLE"
)

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
	// Amounts are stored as int64 minor units.
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

// ScoreTier shifts the base rate, in percentage points, for scores at or above MinScore.
type ScoreTier struct {
	MinScore   int
	Adjustment float64
}

// RateSchedule is the pricing table: an annual base rate (percent) per loan
// type, credit score tiers and the accepted score band.
type RateSchedule struct {
	BaseRates map[string]float64
	Tiers     []ScoreTier
	MinScore  int
	MaxScore  int
}

// DefaultRateSchedule returns the stock pricing table.
func DefaultRateSchedule() RateSchedule {
	return RateSchedule{
		BaseRates: map[string]float64{
			LoanTypeProperty:  8.5,
			LoanTypeEducation: 6.5,
			LoanTypeGold:      10.0,
			LoanTypeVehicle:   9.0,
		},
		Tiers: []ScoreTier{
			{MinScore: 800, Adjustment: -0.5},
			{MinScore: 700, Adjustment: 0},
			{MinScore: 650, Adjustment: 1.0},
		},
		MinScore: 650,
		MaxScore: 900,
	}
}

// Quote is the full pricing of an application.
type Quote struct {
	LoanType      string  `json:"loan_type"`
	AnnualRate    float64 `json:"annual_rate"`
	TotalInterest int64   `json:"total_interest"`
	TotalPayable  int64   `json:"total_payable"`
	EMIAmount     int64   `json:"emi_amount"`
}

// Calculator prices applications against a RateSchedule.
type Calculator struct {
	schedule RateSchedule
}

func NewCalculator(schedule RateSchedule) *Calculator {
	tiers := make([]ScoreTier, len(schedule.Tiers))
	copy(tiers, schedule.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinScore > tiers[j].MinScore })

	rates := make(map[string]float64, len(schedule.BaseRates))
	for k, v := range schedule.BaseRates {
		rates[strings.ToUpper(k)] = v
	}

	return &Calculator{schedule: RateSchedule{
		BaseRates: rates,
		Tiers:     tiers,
		MinScore:  schedule.MinScore,
		MaxScore:  schedule.MaxScore,
	}}
}

// LoanTypes lists the configured loan types in sorted order.
func (c *Calculator) LoanTypes() []string {
	types := make([]string, 0, len(c.schedule.BaseRates))
	for t := range c.schedule.BaseRates {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ComputePayable returns principal plus flat interest for the application.
func (c *Calculator) ComputePayable(principal int64, tenureMonths int, loanType string, creditScore int) (int64, error) {
	q, err := c.Quote(principal, tenureMonths, loanType, creditScore)
	if err != nil {
		return 0, err
	}
	return q.TotalPayable, nil
}

// Quote validates the application and prices it. Interest is simple and flat
// over the tenure, rounded half away from zero to whole minor units.
func (c *Calculator) Quote(principal int64, tenureMonths int, loanType string, creditScore int) (*Quote, error) {
	if principal <= 0 {
		return nil, loan.InvalidApplicationError{Field: "principal", Reason: "must be greater than zero"}
	}
	if tenureMonths <= 0 {
		return nil, loan.InvalidApplicationError{Field: "tenure_months", Reason: "must be greater than zero"}
	}
	if creditScore < c.schedule.MinScore || creditScore > c.schedule.MaxScore {
		return nil, loan.InvalidApplicationError{
			Field:  "credit_score",
			Reason: "must be between " + strconv.Itoa(c.schedule.MinScore) + " and " + strconv.Itoa(c.schedule.MaxScore),
		}
	}

	rate, err := c.rateFor(loanType, creditScore)
	if err != nil {
		return nil, err
	}

	interest := decimal.NewFromInt(principal).
		Mul(rate).
		Mul(decimal.NewFromInt(int64(tenureMonths))).
		Div(hundred).
		Div(monthsInYear).
		Round(0)

	total := decimal.NewFromInt(principal).Add(interest)
	if total.GreaterThan(maxMinorUnits) {
		return nil, loan.InvalidApplicationError{Field: "principal", Reason: "total payable exceeds the representable amount"}
	}

	return &Quote{
		LoanType:      strings.ToUpper(strings.TrimSpace(loanType)),
		AnnualRate:    rate.InexactFloat64(),
		TotalInterest: interest.IntPart(),
		TotalPayable:  total.IntPart(),
		EMIAmount:     total.IntPart() / int64(tenureMonths),
	}, nil
}

func (c *Calculator) rateFor(loanType string, creditScore int) (decimal.Decimal, error) {
	base, ok := c.schedule.BaseRates[strings.ToUpper(strings.TrimSpace(loanType))]
	if !ok {
		return decimal.Zero, loan.InvalidApplicationError{
			Field:  "loan_type",
			Reason: "must be one of " + strings.Join(c.LoanTypes(), ", "),
		}
	}

	rate := decimal.NewFromFloat(base)
	for _, tier := range c.schedule.Tiers {
		if creditScore >= tier.MinScore {
			rate = rate.Add(decimal.NewFromFloat(tier.Adjustment))
			break
		}
	}
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	return rate, nil
}
