package data

import (
	"errors"

	"github.com/mchmarny/leadpulse/pkg/config"
)

const (
	MetricWonRate = "won_rate_pct"
	MetricCPL     = "cpl"
)

// BenchmarkResult compares one KPI against its market benchmark and goal.
type BenchmarkResult struct {
	Metric    string  `json:"metric" yaml:"metric"`
	Current   float64 `json:"current" yaml:"current"`
	Benchmark float64 `json:"benchmark" yaml:"benchmark"`
	Goal      float64 `json:"goal" yaml:"goal"`
	// Delta is current minus benchmark.
	Delta float64 `json:"delta" yaml:"delta"`
	// HigherIsBetter is false for cost metrics.
	HigherIsBetter bool `json:"higher_is_better" yaml:"higherIsBetter"`
	BeatsBenchmark bool `json:"beats_benchmark" yaml:"beatsBenchmark"`
	MeetsGoal      bool `json:"meets_goal" yaml:"meetsGoal"`
}

// CompareBenchmarks evaluates the won rate and the cost per lead of the summary.
func CompareBenchmarks(s *Summary, b config.Benchmarks) ([]*BenchmarkResult, error) {
	if s == nil {
		return nil, errors.New("summary required")
	}

	return []*BenchmarkResult{
		compare(MetricWonRate, s.WonRatePct, b.WonRatePct, b.WonRateGoalPct, true),
		compare(MetricCPL, s.AvgCPL, b.CPL, b.CPLGoal, false),
	}, nil
}

func compare(metric string, current, benchmark, goal float64, higherIsBetter bool) *BenchmarkResult {
	r := &BenchmarkResult{
		Metric:         metric,
		Current:        current,
		Benchmark:      benchmark,
		Goal:           goal,
		Delta:          current - benchmark,
		HigherIsBetter: higherIsBetter,
	}
	if higherIsBetter {
		r.BeatsBenchmark = current > benchmark
		r.MeetsGoal = current >= goal
	} else {
		r.BeatsBenchmark = current < benchmark
		r.MeetsGoal = current <= goal
	}
	return r
}
