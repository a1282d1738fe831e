package tax

import (
	"testing"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func TestACCLevyBelowCap(t *testing.T) {
	result, err := ACCLevy(65000, "2025-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(result.AnnualLevy, 1085.50) {
		t.Fatalf("expected levy 1085.50, got %v", result.AnnualLevy)
	}
	if !almostEqual(result.LiableEarnings, 65000) {
		t.Fatalf("expected full income liable, got %v", result.LiableEarnings)
	}
}

func TestACCLevyCappedAtMaxEarnings(t *testing.T) {
	result, err := ACCLevy(200000, "2025-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(result.LiableEarnings, 152790) {
		t.Fatalf("expected liable earnings capped at 152790, got %v", result.LiableEarnings)
	}
	if !almostEqual(result.AnnualLevy, 2551.59) {
		t.Fatalf("expected levy 2551.59 at the cap, got %v", result.AnnualLevy)
	}
}

func TestACCLevyRejectsNegativeIncome(t *testing.T) {
	_, err := ACCLevy(-100, "2025-26")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
