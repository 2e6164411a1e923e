package risk

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mchmarny/leadpulse/pkg/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableLeads returns leads where every feature alone separates churn.
func separableLeads(n int) []*lead.Lead {
	list := make([]*lead.Lead, 0, n)
	for i := range n {
		if i%2 == 0 {
			list = append(list, &lead.Lead{
				ID:                 "c",
				SpendPerLead:       float64(100 + i),
				QualityScore:       1,
				ScrollDepthPct:     float64(10 + i%20),
				SessionDurationSec: float64(30 + i),
				XRaySubmitted:      false,
				Churn:              true,
			})
			continue
		}
		list = append(list, &lead.Lead{
			ID:                 "r",
			SpendPerLead:       float64(30 + i%50),
			QualityScore:       3,
			ScrollDepthPct:     float64(70 + i%20),
			SessionDurationSec: float64(300 + i),
			XRaySubmitted:      true,
			Churn:              false,
		})
	}
	return list
}

func randomLeads(seed uint64, n int) []*lead.Lead {
	r := rand.New(rand.NewPCG(seed, seed))
	list := make([]*lead.Lead, n)
	for i := range list {
		list[i] = &lead.Lead{
			SpendPerLead:       20 + r.Float64()*130,
			QualityScore:       1 + r.IntN(3),
			ScrollDepthPct:     r.Float64() * 100,
			SessionDurationSec: 30 + r.Float64()*570,
			XRaySubmitted:      r.IntN(2) == 1,
			Churn:              r.IntN(2) == 1,
		}
	}
	// both classes are required
	list[0].Churn = true
	list[1].Churn = false
	return list
}

func TestTrain_Empty(t *testing.T) {
	_, err := Train(nil)
	var ie *InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Records)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrain_SingleClass(t *testing.T) {
	list := separableLeads(10)
	for _, l := range list {
		l.Churn = true
	}
	_, err := Train(list)
	var ie *InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 10, ie.Churned)
	assert.Equal(t, 0, ie.Retained)
}

func TestTrain_InvalidRecord(t *testing.T) {
	list := separableLeads(6)
	list[3].QualityScore = 7
	_, err := Train(list)
	assert.ErrorIs(t, err, lead.ErrInvalidFeature)

	list[3] = nil
	_, err = Train(list)
	assert.Error(t, err)
}

func TestTrain_InvalidOptions(t *testing.T) {
	_, err := TrainWithOptions(separableLeads(6), Options{Trees: 0, Seed: 1})
	assert.Error(t, err)
}

func TestTrain_Counts(t *testing.T) {
	m, err := Train(separableLeads(20))
	require.NoError(t, err)
	assert.Equal(t, 20, m.TrainedOn)
	assert.Equal(t, 10, m.Churned)
	assert.Equal(t, 10, m.Retained)
	assert.Equal(t, DefaultOptions(), m.Options)
	assert.Len(t, m.forest.trees, TreesDefault)
	assert.NotEmpty(t, m.Fingerprint)
}

func TestScore_Separable(t *testing.T) {
	m, err := Train(separableLeads(40))
	require.NoError(t, err)

	risky := lead.Features{SpendPerLead: 120, QualityScore: 1, ScrollDepthPct: 12, SessionDurationSec: 40}
	p, err := m.Score(risky)
	require.NoError(t, err)
	assert.True(t, p.Churn)
	assert.Greater(t, p.Probability, 0.5)
	assert.InDelta(t, math.Max(p.Probability, 1-p.Probability)*100, p.Confidence, 1e-9)

	safe := lead.Features{SpendPerLead: 35, QualityScore: 3, ScrollDepthPct: 85, SessionDurationSec: 420, XRaySubmitted: true}
	p, err = m.Score(safe)
	require.NoError(t, err)
	assert.False(t, p.Churn)
	assert.GreaterOrEqual(t, p.Confidence, 50.0)
	assert.LessOrEqual(t, p.Confidence, 100.0)
}

func TestScore_InvalidFeature(t *testing.T) {
	m, err := Train(separableLeads(10))
	require.NoError(t, err)

	_, err = m.Score(lead.Features{SpendPerLead: 10, QualityScore: 2, ScrollDepthPct: 120, SessionDurationSec: 10})
	var fe *lead.InvalidFeatureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, lead.FeatureScroll, fe.Feature)
}

func TestScore_Untrained(t *testing.T) {
	var m *Model
	_, err := m.Score(lead.Features{QualityScore: 1})
	assert.Error(t, err)
	assert.Nil(t, m.Explain())
}

func TestTrain_Deterministic(t *testing.T) {
	data := randomLeads(7, 60)
	f := lead.Features{SpendPerLead: 80, QualityScore: 2, ScrollDepthPct: 65, SessionDurationSec: 250, XRaySubmitted: true}

	m1, err := Train(data)
	require.NoError(t, err)
	m2, err := Train(data)
	require.NoError(t, err)

	p1, err := m1.Score(f)
	require.NoError(t, err)
	p2, err := m2.Score(f)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, m1.Fingerprint, m2.Fingerprint)
	assert.Equal(t, m1.Explain(), m2.Explain())

	// scoring is repeatable on the same handle
	p3, err := m1.Score(f)
	require.NoError(t, err)
	assert.Equal(t, p1, p3)
}

func TestTrain_SeedChangesFingerprint(t *testing.T) {
	data := randomLeads(3, 30)
	m1, err := TrainWithOptions(data, Options{Trees: 10, Seed: 1})
	require.NoError(t, err)
	m2, err := TrainWithOptions(data, Options{Trees: 10, Seed: 2})
	require.NoError(t, err)
	assert.NotEqual(t, m1.Fingerprint, m2.Fingerprint)
}

func TestExplain(t *testing.T) {
	m, err := Train(randomLeads(11, 50))
	require.NoError(t, err)

	list := m.Explain()
	require.Len(t, list, len(lead.FeatureNames))

	var sum float64
	seen := map[string]bool{}
	for i, imp := range list {
		assert.GreaterOrEqual(t, imp.Weight, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, list[i-1].Weight, imp.Weight)
		}
		seen[imp.Feature] = true
		sum += imp.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, seen, len(lead.FeatureNames))
}

func TestTrain_ImportanceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25

	properties := gopter.NewProperties(parameters)

	properties.Property("importance weights are non-negative and sum to at most one", prop.ForAll(
		func(seed uint64, n int) bool {
			m, err := TrainWithOptions(randomLeads(seed, n), Options{Trees: 10, Seed: SeedDefault})
			if err != nil {
				return false
			}
			var sum float64
			for _, imp := range m.Explain() {
				if imp.Weight < 0 || math.IsNaN(imp.Weight) {
					return false
				}
				sum += imp.Weight
			}
			return sum <= 1+1e-9
		},
		gen.UInt64(),
		gen.IntRange(2, 40),
	))

	properties.Property("confidence stays within 50 and 100", prop.ForAll(
		func(seed uint64, spend, scroll, duration float64, quality int, xray bool) bool {
			m, err := TrainWithOptions(randomLeads(seed, 20), Options{Trees: 10, Seed: SeedDefault})
			if err != nil {
				return false
			}
			p, err := m.Score(lead.Features{
				SpendPerLead:       spend,
				QualityScore:       quality,
				ScrollDepthPct:     scroll,
				SessionDurationSec: duration,
				XRaySubmitted:      xray,
			})
			if err != nil {
				return false
			}
			return p.Confidence >= 50 && p.Confidence <= 100 && p.Probability >= 0 && p.Probability <= 1
		},
		gen.UInt64(),
		gen.Float64Range(0, 200),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 900),
		gen.IntRange(1, 3),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRecommend(t *testing.T) {
	f := lead.Features{QualityScore: 2}
	assert.Equal(t, ActionFreeXRay, Recommend(f, &Prediction{Churn: true}))

	f.XRaySubmitted = true
	assert.Equal(t, ActionPersonalCall, Recommend(f, &Prediction{Churn: true}))
	assert.Equal(t, ActionVIPOffer, Recommend(f, &Prediction{Churn: false}))
	assert.Empty(t, Recommend(f, nil))
}
