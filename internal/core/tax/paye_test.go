package tax

import (
	"testing"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func TestPAYEMonthlyWithStudentLoan(t *testing.T) {
	result, err := PAYE(65000, "monthly", true, "2025-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PeriodsPerYear != 12 {
		t.Fatalf("expected 12 periods, got %d", result.PeriodsPerYear)
	}
	if !almostEqual(result.Annual.IncomeTax, 11720.50) {
		t.Fatalf("expected annual income tax 11720.50, got %v", result.Annual.IncomeTax)
	}
	if !almostEqual(result.Annual.ACCLevy, 1085.50) {
		t.Fatalf("expected annual ACC levy 1085.50, got %v", result.Annual.ACCLevy)
	}
	if !almostEqual(result.Annual.StudentLoan, 4904.64) {
		t.Fatalf("expected annual student loan 4904.64, got %v", result.Annual.StudentLoan)
	}
	if !almostEqual(result.Annual.TakeHome, 47289.36) {
		t.Fatalf("expected annual take home 47289.36, got %v", result.Annual.TakeHome)
	}
	if !almostEqual(result.PerPeriod.TakeHome, 3940.78) {
		t.Fatalf("expected monthly take home 3940.78, got %v", result.PerPeriod.TakeHome)
	}
	if !almostEqual(result.PerPeriod.Gross, 5416.67) {
		t.Fatalf("expected monthly gross 5416.67, got %v", result.PerPeriod.Gross)
	}
}

func TestPAYEWithoutStudentLoan(t *testing.T) {
	result, err := PAYE(65000, "weekly", false, "2025-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Annual.StudentLoan != 0 {
		t.Fatalf("expected no student loan line, got %v", result.Annual.StudentLoan)
	}
	if result.PeriodsPerYear != 52 {
		t.Fatalf("expected 52 periods, got %d", result.PeriodsPerYear)
	}
	if !almostEqual(result.Annual.TotalDeductions, 12806.00) {
		t.Fatalf("expected annual deductions 12806.00, got %v", result.Annual.TotalDeductions)
	}
}

func TestPAYEDefaultsPeriodAndYear(t *testing.T) {
	result, err := PAYE(50000, "", false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PayPeriod != "monthly" {
		t.Fatalf("expected default monthly period, got %q", result.PayPeriod)
	}
	if result.TaxYear != DefaultYear {
		t.Fatalf("expected default tax year %q, got %q", DefaultYear, result.TaxYear)
	}
}

func TestPAYERejectsInvalidPeriod(t *testing.T) {
	_, err := PAYE(65000, "daily", false, "2025-26")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestPAYEIncludesIncomeTaxDetail(t *testing.T) {
	result, err := PAYE(65000, "monthly", false, "2025-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.IncomeTaxDetail.Breakdown) == 0 {
		t.Fatalf("expected income tax detail with bracket breakdown")
	}
	if !almostEqual(result.IncomeTaxDetail.TotalTax, 11720.50) {
		t.Fatalf("expected detail total 11720.50, got %v", result.IncomeTaxDetail.TotalTax)
	}
}
