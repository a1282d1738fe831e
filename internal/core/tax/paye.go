package tax

import (
	"fmt"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

const DefaultPayPeriod = "monthly"

var payPeriods = map[string]int{
	"weekly":      52,
	"fortnightly": 26,
	"four-weekly": 13,
	"monthly":     12,
}

type DeductionLines struct {
	IncomeTax       float64 `json:"income_tax"`
	ACCLevy         float64 `json:"acc_levy"`
	StudentLoan     float64 `json:"student_loan"`
	TotalDeductions float64 `json:"total_deductions"`
	TakeHome        float64 `json:"take_home"`
}

type PeriodLines struct {
	Gross float64 `json:"gross"`
	DeductionLines
}

type PAYEResult struct {
	AnnualIncome    float64         `json:"annual_income"`
	PayPeriod       string          `json:"pay_period"`
	PeriodsPerYear  int             `json:"periods_per_year"`
	TaxYear         string          `json:"tax_year"`
	Annual          DeductionLines  `json:"annual"`
	PerPeriod       PeriodLines     `json:"per_period"`
	IncomeTaxDetail IncomeTaxResult `json:"income_tax_detail"`
	Notes           string          `json:"notes"`
}

const payeNotes = "Simplified PAYE for M/ME tax codes. " +
	"Secondary income (tax code S/SH/ST) uses different rates. " +
	"Does not include KiwiSaver employer/employee contributions."

// PAYE composites income tax, the ACC earner's levy, and an optional
// student loan repayment into per-period deductions. Covers the M/ME tax
// codes only.
func PAYE(annualIncome float64, payPeriod string, hasStudentLoan bool, taxYear string) (PAYEResult, error) {
	if payPeriod == "" {
		payPeriod = DefaultPayPeriod
	}
	periods, ok := payPeriods[payPeriod]
	if !ok {
		return PAYEResult{}, fmt.Errorf("%w: invalid pay period %q, must be one of: weekly, fortnightly, four-weekly, monthly",
			domain.ErrInvalidInput, payPeriod)
	}

	taxResult, err := IncomeTax(annualIncome, taxYear)
	if err != nil {
		return PAYEResult{}, err
	}
	accResult, err := ACCLevy(annualIncome, taxYear)
	if err != nil {
		return PAYEResult{}, err
	}

	loan := 0.0
	if hasStudentLoan {
		loanResult, err := StudentLoanRepayment(annualIncome, taxYear)
		if err != nil {
			return PAYEResult{}, err
		}
		loan = loanResult.AnnualRepayment
	}

	deductions := round2(taxResult.TotalTax + accResult.AnnualLevy + loan)
	takeHome := round2(annualIncome - deductions)
	divide := func(v float64) float64 { return round2(v / float64(periods)) }

	return PAYEResult{
		AnnualIncome:   annualIncome,
		PayPeriod:      payPeriod,
		PeriodsPerYear: periods,
		TaxYear:        taxResult.TaxYear,
		Annual: DeductionLines{
			IncomeTax:       taxResult.TotalTax,
			ACCLevy:         accResult.AnnualLevy,
			StudentLoan:     loan,
			TotalDeductions: deductions,
			TakeHome:        takeHome,
		},
		PerPeriod: PeriodLines{
			Gross: divide(annualIncome),
			DeductionLines: DeductionLines{
				IncomeTax:       divide(taxResult.TotalTax),
				ACCLevy:         divide(accResult.AnnualLevy),
				StudentLoan:     divide(loan),
				TotalDeductions: divide(deductions),
				TakeHome:        divide(takeHome),
			},
		},
		IncomeTaxDetail: taxResult,
		Notes:           payeNotes,
	}, nil
}
