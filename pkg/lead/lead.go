package lead

import (
	"math"
)

const (
	FeatureSpend    = "spend_per_lead"
	FeatureQuality  = "lead_quality_score"
	FeatureScroll   = "scroll_depth_pct"
	FeatureDuration = "session_duration_sec"
	FeatureXRay     = "x_ray_status"

	LabelChurn = "is_churn"

	StatusWon        = "Won"
	StatusLost       = "Lost"
	StatusNurturing  = "Nurturing"
	StatusNoResponse = "No_Response"

	QualityMin = 1
	QualityMax = 3

	scrollMax = 100
)

// FeatureNames lists the model features in vector order.
var FeatureNames = []string{
	FeatureSpend,
	FeatureQuality,
	FeatureScroll,
	FeatureDuration,
	FeatureXRay,
}

// Lead is one historical lead from the joined master table.
type Lead struct {
	ID                 string  `json:"id,omitempty" yaml:"id,omitempty"`
	Platform           string  `json:"platform,omitempty" yaml:"platform,omitempty"`
	Status             string  `json:"status,omitempty" yaml:"status,omitempty"`
	LossReason         string  `json:"loss_reason,omitempty" yaml:"lossReason,omitempty"`
	TreatmentType      string  `json:"treatment_type,omitempty" yaml:"treatmentType,omitempty"`
	SpendPerLead       float64 `json:"spend_per_lead" yaml:"spendPerLead"`
	QualityScore       int     `json:"lead_quality_score" yaml:"leadQualityScore"`
	ScrollDepthPct     float64 `json:"scroll_depth_pct" yaml:"scrollDepthPct"`
	SessionDurationSec float64 `json:"session_duration_sec" yaml:"sessionDurationSec"`
	XRaySubmitted      bool    `json:"x_ray_status" yaml:"xRayStatus"`
	Churn              bool    `json:"is_churn" yaml:"isChurn"`
}

// Features returns the model attributes of the lead.
func (l *Lead) Features() Features {
	return Features{
		SpendPerLead:       l.SpendPerLead,
		QualityScore:       l.QualityScore,
		ScrollDepthPct:     l.ScrollDepthPct,
		SessionDurationSec: l.SessionDurationSec,
		XRaySubmitted:      l.XRaySubmitted,
	}
}

// IsWon reports whether the lead converted into a patient.
func (l *Lead) IsWon() bool {
	return l.Status == StatusWon
}

// Features is a single candidate lead to be scored.
type Features struct {
	SpendPerLead       float64 `json:"spend_per_lead" yaml:"spendPerLead"`
	QualityScore       int     `json:"lead_quality_score" yaml:"leadQualityScore"`
	ScrollDepthPct     float64 `json:"scroll_depth_pct" yaml:"scrollDepthPct"`
	SessionDurationSec float64 `json:"session_duration_sec" yaml:"sessionDurationSec"`
	XRaySubmitted      bool    `json:"x_ray_status" yaml:"xRayStatus"`
}

// Validate checks every feature against its documented domain.
func (f Features) Validate() error {
	if err := checkFinite(FeatureSpend, f.SpendPerLead); err != nil {
		return err
	}
	if f.SpendPerLead < 0 {
		return &InvalidFeatureError{Feature: FeatureSpend, Value: f.SpendPerLead, Reason: "must be non-negative"}
	}

	if f.QualityScore < QualityMin || f.QualityScore > QualityMax {
		return &InvalidFeatureError{Feature: FeatureQuality, Value: float64(f.QualityScore), Reason: "must be 1, 2 or 3"}
	}

	if err := checkFinite(FeatureScroll, f.ScrollDepthPct); err != nil {
		return err
	}
	if f.ScrollDepthPct < 0 || f.ScrollDepthPct > scrollMax {
		return &InvalidFeatureError{Feature: FeatureScroll, Value: f.ScrollDepthPct, Reason: "must be between 0 and 100"}
	}

	if err := checkFinite(FeatureDuration, f.SessionDurationSec); err != nil {
		return err
	}
	if f.SessionDurationSec < 0 {
		return &InvalidFeatureError{Feature: FeatureDuration, Value: f.SessionDurationSec, Reason: "must be non-negative"}
	}

	return nil
}

// Vector returns the features in FeatureNames order, x-ray as 0 or 1.
func (f Features) Vector() []float64 {
	xray := 0.0
	if f.XRaySubmitted {
		xray = 1
	}
	return []float64{
		f.SpendPerLead,
		float64(f.QualityScore),
		f.ScrollDepthPct,
		f.SessionDurationSec,
		xray,
	}
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidFeatureError{Feature: name, Value: v, Reason: "must be a finite number"}
	}
	return nil
}

// FeatureRequest carries optional features as decoded from a transport,
// so a missing value can be told apart from a zero.
type FeatureRequest struct {
	SpendPerLead       *float64 `json:"spend_per_lead" yaml:"spendPerLead"`
	QualityScore       *int     `json:"lead_quality_score" yaml:"leadQualityScore"`
	ScrollDepthPct     *float64 `json:"scroll_depth_pct" yaml:"scrollDepthPct"`
	SessionDurationSec *float64 `json:"session_duration_sec" yaml:"sessionDurationSec"`
	XRaySubmitted      *bool    `json:"x_ray_status" yaml:"xRayStatus"`
}

// Features converts the request, failing on the first missing or invalid field.
func (r *FeatureRequest) Features() (Features, error) {
	var f Features
	if r == nil {
		return f, &InvalidFeatureError{Feature: FeatureSpend, Missing: true}
	}

	switch {
	case r.SpendPerLead == nil:
		return f, &InvalidFeatureError{Feature: FeatureSpend, Missing: true}
	case r.QualityScore == nil:
		return f, &InvalidFeatureError{Feature: FeatureQuality, Missing: true}
	case r.ScrollDepthPct == nil:
		return f, &InvalidFeatureError{Feature: FeatureScroll, Missing: true}
	case r.SessionDurationSec == nil:
		return f, &InvalidFeatureError{Feature: FeatureDuration, Missing: true}
	case r.XRaySubmitted == nil:
		return f, &InvalidFeatureError{Feature: FeatureXRay, Missing: true}
	}

	f = Features{
		SpendPerLead:       *r.SpendPerLead,
		QualityScore:       *r.QualityScore,
		ScrollDepthPct:     *r.ScrollDepthPct,
		SessionDurationSec: *r.SessionDurationSec,
		XRaySubmitted:      *r.XRaySubmitted,
	}

	if err := f.Validate(); err != nil {
		return Features{}, err
	}
	return f, nil
}
