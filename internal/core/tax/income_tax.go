package tax

import (
	"fmt"
	"strings"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type BracketTax struct {
	Lower         float64  `json:"lower"`
	Upper         *float64 `json:"upper"`
	Rate          float64  `json:"rate"`
	TaxableAmount float64  `json:"taxable_amount"`
	Tax           float64  `json:"tax"`
}

type IncomeTaxResult struct {
	AnnualIncome  float64      `json:"annual_income"`
	TotalTax      float64      `json:"total_tax"`
	EffectiveRate float64      `json:"effective_rate"`
	Breakdown     []BracketTax `json:"breakdown"`
	TaxYear       string       `json:"tax_year"`
}

func yearData(taxYear string) (YearData, string, error) {
	if taxYear == "" {
		taxYear = DefaultYear
	}
	data, ok := Years[taxYear]
	if !ok {
		return YearData{}, "", fmt.Errorf("%w: unknown tax year %q, available: %s",
			domain.ErrInvalidInput, taxYear, strings.Join(YearLabels(), ", "))
	}
	return data, taxYear, nil
}

// IncomeTax calculates NZ income tax with a per-bracket breakdown.
// EffectiveRate is a percentage rounded to two decimal places.
func IncomeTax(annualIncome float64, taxYear string) (IncomeTaxResult, error) {
	data, taxYear, err := yearData(taxYear)
	if err != nil {
		return IncomeTaxResult{}, err
	}
	if annualIncome < 0 {
		return IncomeTaxResult{}, fmt.Errorf("%w: annual income must be non-negative", domain.ErrInvalidInput)
	}

	breakdown := make([]BracketTax, 0, len(data.Brackets))
	total := 0.0
	for _, bracket := range data.Brackets {
		if annualIncome <= bracket.Lower {
			break
		}
		upper := bracket.Upper
		capped := bracket.Upper != 0
		if !capped {
			upper = annualIncome
		}
		taxable := min(annualIncome, upper) - bracket.Lower
		due := round2(taxable * bracket.Rate)

		row := BracketTax{
			Lower:         bracket.Lower,
			Rate:          bracket.Rate,
			TaxableAmount: taxable,
			Tax:           due,
		}
		if capped {
			u := bracket.Upper
			row.Upper = &u
		}
		breakdown = append(breakdown, row)
		total += due
	}
	total = round2(total)

	effective := 0.0
	if annualIncome > 0 {
		effective = round2(total / annualIncome * 100)
	}

	return IncomeTaxResult{
		AnnualIncome:  annualIncome,
		TotalTax:      total,
		EffectiveRate: effective,
		Breakdown:     breakdown,
		TaxYear:       taxYear,
	}, nil
}
