package power

import "math"

// Plan is a sample-size recommendation for an A/B test.
type Plan struct {
	Baseline   float64 `json:"baseline" yaml:"baseline"`
	Target     float64 `json:"target" yaml:"target"`
	Uplift     float64 `json:"uplift" yaml:"uplift"`
	EffectSize float64 `json:"effect_size" yaml:"effectSize"`
	Alpha      float64 `json:"alpha" yaml:"alpha"`
	Power      float64 `json:"power" yaml:"power"`
	Ratio      float64 `json:"ratio" yaml:"ratio"`
	GroupA     int     `json:"group_a" yaml:"groupA"`
	GroupB     int     `json:"group_b" yaml:"groupB"`
	Total      int     `json:"total" yaml:"total"`
}

// NewPlan solves the per-arm sample size and sizes the second arm by the allocation ratio.
func NewPlan(p SampleSizeParams) (*Plan, error) {
	n, err := RequiredSampleSize(p)
	if err != nil {
		return nil, err
	}

	p = p.withDefaults()
	b := int(math.Ceil(float64(n) * p.Ratio))

	return &Plan{
		Baseline:   p.Baseline,
		Target:     p.TargetRate(),
		Uplift:     p.Uplift,
		EffectSize: EffectSize(p.Baseline, p.TargetRate()),
		Alpha:      p.Alpha,
		Power:      p.Power,
		Ratio:      p.Ratio,
		GroupA:     n,
		GroupB:     b,
		Total:      n + b,
	}, nil
}

// Assessment is the achieved power of a running or finished test.
type Assessment struct {
	N          int     `json:"n" yaml:"n"`
	RateA      float64 `json:"rate_a" yaml:"rateA"`
	RateB      float64 `json:"rate_b" yaml:"rateB"`
	Alpha      float64 `json:"alpha" yaml:"alpha"`
	EffectSize float64 `json:"effect_size" yaml:"effectSize"`
	Power      float64 `json:"power" yaml:"power"`
	Target     float64 `json:"target" yaml:"target"`
	Sufficient bool    `json:"sufficient" yaml:"sufficient"`
}

// Assess computes the observed power and compares it against target
// (PowerDefault when zero).
func Assess(p ObservedParams, target float64) (*Assessment, error) {
	pw, err := ObservedPower(p)
	if err != nil {
		return nil, err
	}

	if target == 0 {
		target = PowerDefault
	}
	p = p.withDefaults()

	return &Assessment{
		N:          p.N,
		RateA:      p.RateA,
		RateB:      p.RateB,
		Alpha:      p.Alpha,
		EffectSize: EffectSize(p.RateA, p.RateB),
		Power:      pw,
		Target:     target,
		Sufficient: pw >= target,
	}, nil
}
