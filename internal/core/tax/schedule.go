// Package tax implements the deterministic NZ tax calculators exposed as
// LLM tools. Rates are maintained as in-code schedules; brackets change
// rarely (last NZ change: July 2024).
package tax

import (
	"math"
	"sort"
)

// Bracket is one income tax bracket. Upper == 0 means uncapped.
type Bracket struct {
	Lower float64
	Upper float64
	Rate  float64
}

type ACCLevyRates struct {
	Rate              float64
	MaxLiableEarnings float64
}

type StudentLoanRates struct {
	AnnualThreshold float64
	RepaymentRate   float64
}

type YearData struct {
	Brackets    []Bracket
	ACC         ACCLevyRates
	StudentLoan StudentLoanRates
}

// Pre-July 2024 brackets (2023-24 and earlier).
var bracketsPre2024 = []Bracket{
	{Lower: 0, Upper: 14000, Rate: 0.105},
	{Lower: 14000, Upper: 48000, Rate: 0.175},
	{Lower: 48000, Upper: 70000, Rate: 0.30},
	{Lower: 70000, Upper: 180000, Rate: 0.33},
	{Lower: 180000, Upper: 0, Rate: 0.39},
}

// Post-July 2024 brackets (2024-25 onwards).
var brackets2024 = []Bracket{
	{Lower: 0, Upper: 15600, Rate: 0.105},
	{Lower: 15600, Upper: 53500, Rate: 0.175},
	{Lower: 53500, Upper: 78100, Rate: 0.30},
	{Lower: 78100, Upper: 180000, Rate: 0.33},
	{Lower: 180000, Upper: 0, Rate: 0.39},
}

// Years holds all supported tax years. ACC figures are the earner's levy
// including GST; the student loan threshold was frozen at the 2024-25 level.
var Years = map[string]YearData{
	"2023-24": {
		Brackets:    bracketsPre2024,
		ACC:         ACCLevyRates{Rate: 0.0153, MaxLiableEarnings: 139384},
		StudentLoan: StudentLoanRates{AnnualThreshold: 22828, RepaymentRate: 0.12},
	},
	"2024-25": {
		Brackets:    brackets2024,
		ACC:         ACCLevyRates{Rate: 0.0160, MaxLiableEarnings: 142283},
		StudentLoan: StudentLoanRates{AnnualThreshold: 24128, RepaymentRate: 0.12},
	},
	"2025-26": {
		Brackets:    brackets2024,
		ACC:         ACCLevyRates{Rate: 0.0167, MaxLiableEarnings: 152790},
		StudentLoan: StudentLoanRates{AnnualThreshold: 24128, RepaymentRate: 0.12},
	},
}

const DefaultYear = "2025-26"

// YearLabels returns the supported tax year labels in ascending order.
func YearLabels() []string {
	labels := make([]string, 0, len(Years))
	for label := range Years {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
