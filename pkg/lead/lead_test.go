package lead

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFeatures() Features {
	return Features{
		SpendPerLead:       80,
		QualityScore:       2,
		ScrollDepthPct:     65,
		SessionDurationSec: 250,
		XRaySubmitted:      true,
	}
}

func TestFeatures_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Features)
		feature string
	}{
		{"valid", func(*Features) {}, ""},
		{"zero values in domain", func(f *Features) { f.SpendPerLead = 0; f.ScrollDepthPct = 0; f.SessionDurationSec = 0 }, ""},
		{"negative spend", func(f *Features) { f.SpendPerLead = -1 }, FeatureSpend},
		{"nan spend", func(f *Features) { f.SpendPerLead = math.NaN() }, FeatureSpend},
		{"quality zero", func(f *Features) { f.QualityScore = 0 }, FeatureQuality},
		{"quality four", func(f *Features) { f.QualityScore = 4 }, FeatureQuality},
		{"scroll over", func(f *Features) { f.ScrollDepthPct = 100.5 }, FeatureScroll},
		{"scroll negative", func(f *Features) { f.ScrollDepthPct = -0.1 }, FeatureScroll},
		{"duration negative", func(f *Features) { f.SessionDurationSec = -5 }, FeatureDuration},
		{"duration inf", func(f *Features) { f.SessionDurationSec = math.Inf(1) }, FeatureDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFeatures()
			tt.mutate(&f)
			err := f.Validate()
			if tt.feature == "" {
				assert.NoError(t, err)
				return
			}
			var fe *InvalidFeatureError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.feature, fe.Feature)
			assert.True(t, errors.Is(err, ErrInvalidFeature))
		})
	}
}

func TestFeatures_Vector(t *testing.T) {
	f := validFeatures()
	assert.Equal(t, []float64{80, 2, 65, 250, 1}, f.Vector())

	f.XRaySubmitted = false
	v := f.Vector()
	assert.Len(t, v, len(FeatureNames))
	assert.Equal(t, 0.0, v[4])
}

func TestFeatureRequest_Features(t *testing.T) {
	spend, scroll, dur := 80.0, 65.0, 250.0
	quality := 2
	xray := false

	r := &FeatureRequest{
		SpendPerLead:       &spend,
		QualityScore:       &quality,
		ScrollDepthPct:     &scroll,
		SessionDurationSec: &dur,
		XRaySubmitted:      &xray,
	}
	f, err := r.Features()
	require.NoError(t, err)
	assert.Equal(t, 2, f.QualityScore)
	assert.False(t, f.XRaySubmitted)

	r.XRaySubmitted = nil
	_, err = r.Features()
	var fe *InvalidFeatureError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Missing)
	assert.Equal(t, FeatureXRay, fe.Feature)

	bad := 5
	r.XRaySubmitted = &xray
	r.QualityScore = &bad
	_, err = r.Features()
	assert.ErrorIs(t, err, ErrInvalidFeature)

	var nilReq *FeatureRequest
	_, err = nilReq.Features()
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestLead_Features(t *testing.T) {
	l := &Lead{SpendPerLead: 10, QualityScore: 3, ScrollDepthPct: 5, SessionDurationSec: 7, XRaySubmitted: true, Churn: true}
	f := l.Features()
	assert.Equal(t, Features{SpendPerLead: 10, QualityScore: 3, ScrollDepthPct: 5, SessionDurationSec: 7, XRaySubmitted: true}, f)
}
