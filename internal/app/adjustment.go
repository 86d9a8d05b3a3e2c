/**
 * @description
 * Fee-split adjustment math. A completed payment may carry payer-side
 * fee-split data: either a discount the payer earned (reduces the order
 * total) or fees passed on to the payer (increase it). The adjustment is
 * computed once at capture time and folded into aggregate totals exactly
 * once, guarded by the order's AdjustmentApplied marker.
 */

package app

import "github.com/orderflow/reconciliation-service/internal/domain"

// ComputeAdjustment derives the signed adjustment (in cents) from fee-split
// data. A payer discount always yields a negative value, payer fees a
// positive one. The two are mutually exclusive on well-formed payloads; when
// both are non-zero the discount branch wins.
func ComputeAdjustment(split *domain.FeeSplit) int64 {
	if split == nil {
		return 0
	}
	if split.PayerDiscount != 0 {
		return -abs(split.PayerDiscount)
	}
	if split.PayerTotalFees != 0 {
		return abs(split.PayerTotalFees)
	}
	return 0
}

// FoldAdjustment adds the signed adjustment to an aggregate total, clamping
// at zero. Totals an adjustment is folded into must never go negative.
func FoldAdjustment(total, adjustment int64) int64 {
	folded := total + adjustment
	if folded < 0 {
		return 0
	}
	return folded
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
