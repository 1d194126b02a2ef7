// Package pricing computes parcel collection prices: a weight-based base price plus a flat
// monthly surcharge for parcels held past the grace period.
package pricing

import (
	"time"
)

// Weight category labels recognised for base pricing.
const (
	Category1Kg      = "1kg"
	Category3Kg      = "3kg"
	Category5Kg      = "5kg"
	CategoryAbove5Kg = "Above 5kg"
)

const (
	// GracePeriodDays is the number of days a parcel can be held without an overdue charge.
	GracePeriodDays = 30

	// OverduePeriodDays is the length of one overdue billing period.
	OverduePeriodDays = 30

	// MonthlyPenalty is charged once per elapsed overdue period.
	MonthlyPenalty = 20.0

	millisPerDay = int64(24 * time.Hour / time.Millisecond)
)

type categoryPrice struct {
	label string
	price float64
}

// Order matters: the first label present wins, regardless of which weight is larger.
var weightPrices = []categoryPrice{
	{label: Category1Kg, price: 1},
	{label: Category3Kg, price: 2},
	{label: Category5Kg, price: 3},
	{label: CategoryAbove5Kg, price: 5},
}

// Input is everything needed to price a parcel at a given instant.
type Input struct {
	Categories        []string
	BasePriceOverride *float64
	IntakeAt          time.Time
	EvaluatedAt       time.Time
}

// Result is the price breakdown. TotalPrice is always BasePrice + OverdueCharge.
type Result struct {
	BasePrice     float64 `json:"base_price"`
	OverdueCharge float64 `json:"overdue_charge"`
	TotalPrice    float64 `json:"total_price"`
	DaysHeld      int     `json:"days_held"`
}

// OverdueMonths returns the number of overdue periods charged for the result.
func (r Result) OverdueMonths() int {
	return int(r.OverdueCharge / MonthlyPenalty)
}

// Calculate prices a parcel. It has no side effects and never fails.
func Calculate(in Input) Result {
	base := BasePriceFor(in.Categories)
	if in.BasePriceOverride != nil && *in.BasePriceOverride != 0 {
		base = *in.BasePriceOverride
	}

	days := DaysHeld(in.IntakeAt, in.EvaluatedAt)
	overdue := OverdueCharge(days)

	return Result{
		BasePrice:     base,
		OverdueCharge: overdue,
		TotalPrice:    base + overdue,
		DaysHeld:      days,
	}
}

// BasePriceFor returns the price of the first weight label found in the fixed
// order 1kg, 3kg, 5kg, Above 5kg. Unknown labels are ignored; no match prices at 0.
func BasePriceFor(categories []string) float64 {
	if len(categories) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		present[c] = struct{}{}
	}
	for _, wp := range weightPrices {
		if _, ok := present[wp.label]; ok {
			return wp.price
		}
	}
	return 0
}

// DaysHeld is the elapsed time between intake and evaluation in days, rounded up.
// Elapsed time is taken as an absolute value so the result is never negative.
func DaysHeld(intakeAt, evaluatedAt time.Time) int {
	ms := evaluatedAt.Sub(intakeAt).Milliseconds()
	if ms < 0 {
		ms = -ms
	}
	days := ms / millisPerDay
	if ms%millisPerDay != 0 {
		days++
	}
	return int(days)
}

// OverdueMonths returns how many overdue periods have elapsed for a holding duration.
func OverdueMonths(daysHeld int) int {
	if daysHeld <= GracePeriodDays {
		return 0
	}
	return (daysHeld - 1) / OverduePeriodDays
}

// OverdueCharge is the surcharge for a holding duration.
func OverdueCharge(daysHeld int) float64 {
	return float64(OverdueMonths(daysHeld)) * MonthlyPenalty
}

// WeightCategories lists the labels that affect base pricing, in priority order.
func WeightCategories() []string {
	out := make([]string, 0, len(weightPrices))
	for _, wp := range weightPrices {
		out = append(out, wp.label)
	}
	return out
}

// IsWeightCategory reports whether label is one of the weight labels.
func IsWeightCategory(label string) bool {
	for _, wp := range weightPrices {
		if wp.label == label {
			return true
		}
	}
	return false
}

// Calculator prices parcels as of the current time.
type Calculator interface {
	Quote(categories []string, override *float64, intakeAt time.Time) Result
	QuoteAt(categories []string, override *float64, intakeAt, evaluatedAt time.Time) Result
	Now() time.Time
}

type calculatorImpl struct {
	clock func() time.Time
}

// NewCalculator returns a Calculator that evaluates at clock(). A nil clock uses UTC now.
func NewCalculator(clock func() time.Time) Calculator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &calculatorImpl{clock: clock}
}

func (c *calculatorImpl) Now() time.Time {
	return c.clock()
}

func (c *calculatorImpl) Quote(categories []string, override *float64, intakeAt time.Time) Result {
	return c.QuoteAt(categories, override, intakeAt, c.clock())
}

func (c *calculatorImpl) QuoteAt(categories []string, override *float64, intakeAt, evaluatedAt time.Time) Result {
	return Calculate(Input{
		Categories:        categories,
		BasePriceOverride: override,
		IntakeAt:          intakeAt,
		EvaluatedAt:       evaluatedAt,
	})
}
