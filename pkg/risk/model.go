package risk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/mchmarny/leadpulse/pkg/lead"
)

const (
	// TreesDefault is the ensemble size.
	TreesDefault = 100
	// SeedDefault fixes the tree structure for a given dataset.
	SeedDefault uint64 = 42

	percent = 100
)

// Options controls the ensemble. The zero value is not usable, start from DefaultOptions.
type Options struct {
	Trees int    `json:"trees" yaml:"trees"`
	Seed  uint64 `json:"seed" yaml:"seed"`
}

// DefaultOptions returns 100 trees with seed 42.
func DefaultOptions() Options {
	return Options{Trees: TreesDefault, Seed: SeedDefault}
}

// Model is a trained churn classifier. It is immutable and safe for
// concurrent Score and Explain calls; a new snapshot requires a new Train.
type Model struct {
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`
	TrainedOn   int     `json:"trained_on" yaml:"trainedOn"`
	Churned     int     `json:"churned" yaml:"churned"`
	Retained    int     `json:"retained" yaml:"retained"`
	Options     Options `json:"options" yaml:"options"`

	forest *forest
}

// Prediction is the scored outcome for one candidate lead.
type Prediction struct {
	Churn       bool    `json:"churn" yaml:"churn"`
	Probability float64 `json:"probability" yaml:"probability"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
}

// Importance is the contribution of one feature to impurity reduction.
type Importance struct {
	Feature string  `json:"feature" yaml:"feature"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// Train fits the default ensemble over the historical leads.
func Train(leads []*lead.Lead) (*Model, error) {
	return TrainWithOptions(leads, DefaultOptions())
}

// TrainWithOptions fits an ensemble with explicit size and seed.
func TrainWithOptions(leads []*lead.Lead, opts Options) (*Model, error) {
	if opts.Trees < 1 {
		return nil, fmt.Errorf("invalid tree count: %d", opts.Trees)
	}

	if len(leads) == 0 {
		return nil, &InsufficientDataError{}
	}

	x := make([][]float64, 0, len(leads))
	y := make([]int, 0, len(leads))
	var churned int

	for i, l := range leads {
		if l == nil {
			return nil, fmt.Errorf("record %d: nil lead", i)
		}
		f := l.Features()
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		x = append(x, f.Vector())
		label := 0
		if l.Churn {
			label = 1
			churned++
		}
		y = append(y, label)
	}

	retained := len(leads) - churned
	if churned == 0 || retained == 0 {
		return nil, &InsufficientDataError{Records: len(leads), Churned: churned, Retained: retained}
	}

	slog.Debug("training churn model",
		"records", len(leads), "churned", churned, "trees", opts.Trees, "seed", opts.Seed)

	m := &Model{
		Fingerprint: fingerprint(x, y, opts),
		TrainedOn:   len(leads),
		Churned:     churned,
		Retained:    retained,
		Options:     opts,
		forest:      fitForest(x, y, opts.Trees, opts.Seed),
	}

	slog.Debug("churn model trained", "fingerprint", m.Fingerprint)
	return m, nil
}

// Score predicts churn for a single candidate lead.
func (m *Model) Score(f lead.Features) (*Prediction, error) {
	if m == nil || m.forest == nil {
		return nil, errors.New("model not trained")
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	p := m.forest.churnProbability(f.Vector())

	// ties go to the retained class
	return &Prediction{
		Churn:       p > 1-p,
		Probability: p,
		Confidence:  math.Max(p, 1-p) * percent,
	}, nil
}

// Explain returns the feature importances in ascending order of weight.
func (m *Model) Explain() []Importance {
	if m == nil || m.forest == nil {
		return nil
	}

	list := make([]Importance, len(lead.FeatureNames))
	for i, name := range lead.FeatureNames {
		list[i] = Importance{Feature: name, Weight: m.forest.importance[i]}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Weight < list[j].Weight
	})
	return list
}

// fingerprint derives a stable id from the training matrix and options.
func fingerprint(x [][]float64, y []int, opts Options) string {
	b := make([]byte, 0, len(x)*(len(lead.FeatureNames)+1)*8+16)
	for i, row := range x {
		for _, v := range row {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
		}
		b = binary.LittleEndian.AppendUint64(b, uint64(y[i]))
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(opts.Trees))
	b = binary.LittleEndian.AppendUint64(b, opts.Seed)
	return uuid.NewSHA1(uuid.NameSpaceOID, b).String()
}
