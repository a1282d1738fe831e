package tax

import (
	"fmt"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type StudentLoanResult struct {
	AnnualIncome         float64 `json:"annual_income"`
	AnnualRepayment      float64 `json:"annual_repayment"`
	RepaymentRate        float64 `json:"repayment_rate"`
	AnnualThreshold      float64 `json:"annual_threshold"`
	IncomeAboveThreshold float64 `json:"income_above_threshold"`
	TaxYear              string  `json:"tax_year"`
}

// StudentLoanRepayment calculates the annual student loan repayment,
// charged at the repayment rate on income above the annual threshold.
func StudentLoanRepayment(annualIncome float64, taxYear string) (StudentLoanResult, error) {
	data, taxYear, err := yearData(taxYear)
	if err != nil {
		return StudentLoanResult{}, err
	}
	if annualIncome < 0 {
		return StudentLoanResult{}, fmt.Errorf("%w: annual income must be non-negative", domain.ErrInvalidInput)
	}

	above := max(0, annualIncome-data.StudentLoan.AnnualThreshold)
	return StudentLoanResult{
		AnnualIncome:         annualIncome,
		AnnualRepayment:      round2(above * data.StudentLoan.RepaymentRate),
		RepaymentRate:        data.StudentLoan.RepaymentRate,
		AnnualThreshold:      data.StudentLoan.AnnualThreshold,
		IncomeAboveThreshold: above,
		TaxYear:              taxYear,
	}, nil
}
