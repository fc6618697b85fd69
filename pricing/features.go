package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"mobile-price-api/models"
)

// lowCapacityFloor is substituted for in-training capacity values that carry
// no digits at all (e.g. "unknown"). It is the accepted low-capacity floor of
// the marketplace, not a default for the query device.
const lowCapacityFloor = 6

var digitsRe = regexp.MustCompile(`\d+`)

// FeatureRow is the numeric projection of a listing or query device. Training
// and scoring both go through this one type, so the two paths can never drift
// apart column-wise.
type FeatureRow struct {
	RAM            float64
	Storage        float64
	Condition      float64
	PTAApproved    float64
	IsPanelChanged float64
	ScreenCrack    float64
	PanelDot       float64
	PanelLine      float64
	PanelShade     float64
	CameraLensOK   float64
	FingerprintOK  float64
	WithBox        float64
	WithCharger    float64
}

func (r FeatureRow) vector() []float64 {
	return []float64{
		r.RAM, r.Storage, r.Condition, r.PTAApproved,
		r.IsPanelChanged, r.ScreenCrack, r.PanelDot, r.PanelLine, r.PanelShade,
		r.CameraLensOK, r.FingerprintOK, r.WithBox, r.WithCharger,
	}
}

// Fallback carries the parsed ram/storage of the first well-formed training
// record, used to fill rows where scrapers could not extract a capacity.
type Fallback struct {
	RAM     float64
	Storage float64
}

// parseCapacity reduces a capacity descriptor like "4GB" or "128 GB" to its
// leading numeric token. Returns false when the string holds no digits.
func parseCapacity(s string) (float64, bool) {
	match := digitsRe.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// wellFormedCapacity reports whether a capacity descriptor names a unit and a
// numeric value, making it usable as an imputation fallback.
func wellFormedCapacity(s *string) bool {
	if s == nil {
		return false
	}
	if !strings.Contains(strings.ToUpper(*s), "GB") {
		return false
	}
	_, ok := parseCapacity(*s)
	return ok
}

// trainingFallback scans the training set in order for the first record whose
// ram and storage are both well-formed.
func trainingFallback(model string, listings []models.Listing) (Fallback, error) {
	for _, l := range listings {
		if wellFormedCapacity(l.RAM) && wellFormedCapacity(l.Storage) {
			ram, _ := parseCapacity(*l.RAM)
			storage, _ := parseCapacity(*l.Storage)
			return Fallback{RAM: ram, Storage: storage}, nil
		}
	}
	return Fallback{}, &models.ImputationError{Model: model}
}

// trainingCapacity resolves one in-training capacity field: missing fields
// take the fallback, present but digit-less fields take the floor constant.
func trainingCapacity(raw *string, fallback float64) float64 {
	if raw == nil || *raw == "" {
		return fallback
	}
	if v, ok := parseCapacity(*raw); ok {
		return v
	}
	return lowCapacityFloor
}

// queryCapacity resolves a query-device capacity field. The floor constant is
// never applied here; anything unusable takes the training-set fallback.
func queryCapacity(raw *string, fallback float64) float64 {
	if raw == nil || *raw == "" {
		return fallback
	}
	if v, ok := parseCapacity(*raw); ok {
		return v
	}
	return fallback
}

// boolFeature encodes an optional flag as 0/1. Absent flags take the default
// the marketplace extraction assumes when a listing does not mention the
// attribute (damage flags false, working-part flags true).
func boolFeature(b *bool, absent float64) float64 {
	if b == nil {
		return absent
	}
	if *b {
		return 1
	}
	return 0
}

func encodeFlags(row *FeatureRow, ptaApproved, isPanelChanged, screenCrack, panelDot, panelLine, panelShade, cameraLensOK, fingerprintOK, withBox, withCharger *bool) {
	row.PTAApproved = boolFeature(ptaApproved, 1)
	row.IsPanelChanged = boolFeature(isPanelChanged, 0)
	row.ScreenCrack = boolFeature(screenCrack, 0)
	row.PanelDot = boolFeature(panelDot, 0)
	row.PanelLine = boolFeature(panelLine, 0)
	row.PanelShade = boolFeature(panelShade, 0)
	row.CameraLensOK = boolFeature(cameraLensOK, 1)
	row.FingerprintOK = boolFeature(fingerprintOK, 1)
	row.WithBox = boolFeature(withBox, 0)
	row.WithCharger = boolFeature(withCharger, 0)
}

// EncodeListings converts the training set into feature rows plus the price
// labels, aligned by index. Prices stay nullable here; the trainer decides
// what to do with unpriced rows. The returned Fallback is reused to encode
// the query device.
func EncodeListings(model string, listings []models.Listing) ([]FeatureRow, []*float64, Fallback, error) {
	fallback, err := trainingFallback(model, listings)
	if err != nil {
		return nil, nil, Fallback{}, err
	}

	rows := make([]FeatureRow, 0, len(listings))
	prices := make([]*float64, 0, len(listings))
	for _, l := range listings {
		row := FeatureRow{
			RAM:       trainingCapacity(l.RAM, fallback.RAM),
			Storage:   trainingCapacity(l.Storage, fallback.Storage),
			Condition: float64(l.Condition),
		}
		encodeFlags(&row, l.PTAApproved, l.IsPanelChanged, l.ScreenCrack, l.PanelDot,
			l.PanelLine, l.PanelShade, l.CameraLensOK, l.FingerprintOK, l.WithBox, l.WithCharger)
		rows = append(rows, row)
		prices = append(prices, l.Price)
	}

	return rows, prices, fallback, nil
}

// EncodeDevice converts the query device into a feature row using the same
// encoding rules as the training path.
func EncodeDevice(q models.QueryDevice, fallback Fallback) FeatureRow {
	row := FeatureRow{
		RAM:       queryCapacity(q.RAM, fallback.RAM),
		Storage:   queryCapacity(q.Storage, fallback.Storage),
		Condition: float64(q.Condition),
	}
	encodeFlags(&row, q.PTAApproved, q.IsPanelChanged, q.ScreenCrack, q.PanelDot,
		q.PanelLine, q.PanelShade, q.CameraLensOK, q.FingerprintOK, q.WithBox, q.WithCharger)
	return row
}
