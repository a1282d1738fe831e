package tax

import (
	"fmt"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type ACCLevyResult struct {
	AnnualIncome      float64 `json:"annual_income"`
	AnnualLevy        float64 `json:"annual_levy"`
	ACCRate           float64 `json:"acc_rate"`
	LiableEarnings    float64 `json:"liable_earnings"`
	MaxLiableEarnings float64 `json:"max_liable_earnings"`
	TaxYear           string  `json:"tax_year"`
}

// ACCLevy calculates the ACC earner's levy. The levy applies to income up
// to the maximum liable earnings cap for the year.
func ACCLevy(annualIncome float64, taxYear string) (ACCLevyResult, error) {
	data, taxYear, err := yearData(taxYear)
	if err != nil {
		return ACCLevyResult{}, err
	}
	if annualIncome < 0 {
		return ACCLevyResult{}, fmt.Errorf("%w: annual income must be non-negative", domain.ErrInvalidInput)
	}

	liable := min(annualIncome, data.ACC.MaxLiableEarnings)
	return ACCLevyResult{
		AnnualIncome:      annualIncome,
		AnnualLevy:        round2(liable * data.ACC.Rate),
		ACCRate:           data.ACC.Rate,
		LiableEarnings:    liable,
		MaxLiableEarnings: data.ACC.MaxLiableEarnings,
		TaxYear:           taxYear,
	}, nil
}
