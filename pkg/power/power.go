package power

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// AlphaDefault is the two-sided significance level.
	AlphaDefault = 0.05
	// PowerDefault is the target probability of detecting the effect.
	PowerDefault = 0.80
	// RatioDefault allocates both arms equally.
	RatioDefault = 1.0

	// MinSampleSize is the smallest per-arm sample the test is defined for.
	MinSampleSize = 2

	maxSampleSize    = 1e12
	solverIterations = 200
	solverTolerance  = 1e-9
)

// SampleSizeParams are the inputs of an a priori sample-size calculation.
// Zero Alpha, Power and Ratio take the package defaults.
type SampleSizeParams struct {
	Baseline float64 `json:"baseline" yaml:"baseline"`
	Uplift   float64 `json:"uplift" yaml:"uplift"`
	Alpha    float64 `json:"alpha" yaml:"alpha"`
	Power    float64 `json:"power" yaml:"power"`
	Ratio    float64 `json:"ratio" yaml:"ratio"`
}

// TargetRate is the conversion rate the variant is expected to reach.
func (p SampleSizeParams) TargetRate() float64 {
	return p.Baseline * (1 + p.Uplift)
}

func (p SampleSizeParams) withDefaults() SampleSizeParams {
	if p.Alpha == 0 {
		p.Alpha = AlphaDefault
	}
	if p.Power == 0 {
		p.Power = PowerDefault
	}
	if p.Ratio == 0 {
		p.Ratio = RatioDefault
	}
	return p
}

func (p SampleSizeParams) validate() error {
	switch {
	case !(p.Baseline > 0 && p.Baseline < 1):
		return &InvalidParameterError{Param: "baseline", Value: p.Baseline, Reason: "must be between 0 and 1 (exclusive)"}
	case !(p.Uplift > 0) || math.IsInf(p.Uplift, 0):
		return &InvalidParameterError{Param: "uplift", Value: p.Uplift, Reason: "must be positive"}
	case !(p.TargetRate() < 1):
		return &InvalidParameterError{Param: "target_rate", Value: p.TargetRate(), Reason: "baseline with uplift must stay below 1"}
	}
	if err := checkAlpha(p.Alpha); err != nil {
		return err
	}
	if !(p.Power > 0 && p.Power < 1) {
		return &InvalidParameterError{Param: "power", Value: p.Power, Reason: "must be between 0 and 1 (exclusive)"}
	}
	if !(p.Ratio > 0) || math.IsInf(p.Ratio, 0) {
		return &InvalidParameterError{Param: "ratio", Value: p.Ratio, Reason: "must be positive"}
	}
	return nil
}

// ObservedParams are the inputs of a post hoc power calculation.
// Zero Alpha takes the package default.
type ObservedParams struct {
	N     int     `json:"n" yaml:"n"`
	RateA float64 `json:"rate_a" yaml:"rateA"`
	RateB float64 `json:"rate_b" yaml:"rateB"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

func (p ObservedParams) withDefaults() ObservedParams {
	if p.Alpha == 0 {
		p.Alpha = AlphaDefault
	}
	return p
}

func (p ObservedParams) validate() error {
	if p.N < MinSampleSize {
		return &InvalidParameterError{Param: "n", Value: float64(p.N), Reason: "must be at least 2"}
	}
	if !(p.RateA >= 0 && p.RateA <= 1) {
		return &InvalidParameterError{Param: "rate_a", Value: p.RateA, Reason: "must be between 0 and 1"}
	}
	if !(p.RateB >= 0 && p.RateB <= 1) {
		return &InvalidParameterError{Param: "rate_b", Value: p.RateB, Reason: "must be between 0 and 1"}
	}
	return checkAlpha(p.Alpha)
}

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return &InvalidParameterError{Param: "alpha", Value: alpha, Reason: "must be between 0 and 1 (exclusive)"}
	}
	return nil
}

// EffectSize returns Cohen's h for moving from rate p0 to rate p1.
func EffectSize(p0, p1 float64) float64 {
	return 2 * (math.Asin(math.Sqrt(p1)) - math.Asin(math.Sqrt(p0)))
}

// RequiredSampleSize returns the smallest per-arm sample for which a
// two-sided two-sample test detects the uplift with the requested power.
func RequiredSampleSize(p SampleSizeParams) (int, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return 0, err
	}

	h := EffectSize(p.Baseline, p.TargetRate())
	target := p.Power
	pow := func(n float64) float64 { return testPower(h, n, p.Ratio, p.Alpha) }

	lo, hi := float64(MinSampleSize), float64(2*MinSampleSize)
	if pow(lo) >= target {
		return MinSampleSize, nil
	}

	for pow(hi) < target {
		lo = hi
		hi *= 2
		if hi > maxSampleSize {
			return 0, &InvalidParameterError{Param: "uplift", Value: p.Uplift, Reason: "effect too small to detect with a finite sample"}
		}
	}

	// power(lo) < target <= power(hi)
	var it int
	for it = 0; it < solverIterations && hi-lo > solverTolerance*hi; it++ {
		mid := lo + (hi-lo)/2
		if pow(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}

	n := math.Ceil(lo)
	if pow(n) < target {
		n++
	}

	slog.Debug("sample size solved", "effect_size", h, "iterations", it, "n", n)
	return int(n), nil
}

// ObservedPower returns the achieved power of a two-sided two-sample test
// with n subjects per arm and the observed conversion rates.
func ObservedPower(p ObservedParams) (float64, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return 0, err
	}

	h := EffectSize(p.RateA, p.RateB)
	return testPower(h, float64(p.N), RatioDefault, p.Alpha), nil
}

// testPower is the power of the two-sided independent two-sample t-test for
// effect size h with n1 subjects in the first arm and n1*ratio in the second.
func testPower(h, n1, ratio, alpha float64) float64 {
	n2 := n1 * ratio
	df := n1 + n2 - 2
	nc := math.Abs(h) * math.Sqrt(1/(1/n1+1/n2))

	crit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - alpha/2)

	pw := (1 - nctCDF(crit, df, nc)) + nctCDF(-crit, df, nc)
	return math.Max(0, math.Min(1, pw))
}
