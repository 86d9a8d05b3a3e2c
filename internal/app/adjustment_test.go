package app

import (
	"testing"

	"github.com/orderflow/reconciliation-service/internal/domain"
)

func TestComputeAdjustment(t *testing.T) {
	cases := []struct {
		name  string
		split *domain.FeeSplit
		want  int64
	}{
		{"nil split", nil, 0},
		{"empty split", &domain.FeeSplit{}, 0},
		{"payer discount is negative", &domain.FeeSplit{PayerDiscount: 500}, -500},
		{"discount sign is normalized", &domain.FeeSplit{PayerDiscount: -500}, -500},
		{"payer fees are positive", &domain.FeeSplit{PayerTotalFees: 300}, 300},
		{"fee sign is normalized", &domain.FeeSplit{PayerTotalFees: -300}, 300},
		{"discount wins over fees", &domain.FeeSplit{PayerDiscount: 500, PayerTotalFees: 300}, -500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeAdjustment(tc.split); got != tc.want {
				t.Fatalf("ComputeAdjustment = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFoldAdjustment(t *testing.T) {
	if got := FoldAdjustment(10000, -500); got != 9500 {
		t.Fatalf("discount fold = %d, want 9500", got)
	}
	if got := FoldAdjustment(10000, 300); got != 10300 {
		t.Fatalf("fee fold = %d, want 10300", got)
	}
	if got := FoldAdjustment(200, -500); got != 0 {
		t.Fatalf("totals must clamp at zero, got %d", got)
	}
}
