package pricing

import (
	"math"

	"mobile-price-api/models"
)

// AdjustmentRule discounts the raw model estimate for one cosmetic or
// approval defect. Rules are evaluated independently and their factors
// compound.
type AdjustmentRule struct {
	Name    string
	Factor  float64
	Applies func(q models.QueryDevice) bool
}

// DefaultAdjustments is applied strictly in this order. Absent flags never
// trigger a rule: the working-part rules fire only on an explicit false.
var DefaultAdjustments = []AdjustmentRule{
	{"panel_changed", 0.80, func(q models.QueryDevice) bool { return isTrue(q.IsPanelChanged) }},
	{"panel_dot", 0.75, func(q models.QueryDevice) bool { return isTrue(q.PanelDot) }},
	{"panel_line", 0.70, func(q models.QueryDevice) bool { return isTrue(q.PanelLine) }},
	{"panel_shade", 0.75, func(q models.QueryDevice) bool { return isTrue(q.PanelShade) }},
	{"screen_crack", 0.70, func(q models.QueryDevice) bool { return isTrue(q.ScreenCrack) }},
	{"camera_lens_damaged", 0.90, func(q models.QueryDevice) bool { return isFalse(q.CameraLensOK) }},
	{"fingerprint_broken", 0.85, func(q models.QueryDevice) bool { return isFalse(q.FingerprintOK) }},
	{"non_pta", 0.80, func(q models.QueryDevice) bool { return isFalse(q.PTAApproved) }},
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }

func applyAdjustments(price float64, q models.QueryDevice, rules []AdjustmentRule) float64 {
	for _, rule := range rules {
		if rule.Applies(q) {
			price *= rule.Factor
		}
	}
	return price
}

// roundToNearest500 rounds to the nearest multiple of 500, halves away from
// zero (12250 → 12500).
func roundToNearest500(price float64) int {
	return int(math.Round(price/500) * 500)
}
