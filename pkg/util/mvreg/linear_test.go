package mvreg

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// x = 1..5, y = 2 4 5 4 5: slope 0.6, intercept 2.2, SSE 2.4, SST 6
var (
	smallX = []float64{1, 2, 3, 4, 5}
	smallY = []float64{2, 4, 5, 4, 5}
)

func TestFitKnownLine(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, m.Slope, 1e-12)
	assert.InDelta(t, 2.2, m.Intercept, 1e-12)
	assert.InDelta(t, 0.6, m.RSquared, 1e-12)
	assert.Equal(t, 5, m.N)
	assert.InDelta(t, math.Sqrt(0.8), m.ResidualStdErr, 1e-12)
	assert.InDelta(t, math.Sqrt(0.8)/math.Sqrt(10), m.SlopeStdErr, 1e-12)
	assert.InDelta(t, 3.0, m.MeanX, 1e-12)
	assert.InDelta(t, 10.0, m.SXX, 1e-12)
	assert.Equal(t, 1.0, m.MinX)
	assert.Equal(t, 5.0, m.MaxX)

	assert.InDelta(t, 8.2, m.Predict(10), 1e-12)
	assert.Equal(t, []float64{2.2, 2.8}, roundAll(m.PredictAll([]float64{0, 1})))
	assert.Contains(t, m.String(), "R²: 0.6000")
}

func TestFitPerfectLine(t *testing.T) {
	m, err := Fit([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, m.Slope, 1e-12)
	assert.InDelta(t, 1.0, m.Intercept, 1e-12)
	assert.InDelta(t, 1.0, m.RSquared, 1e-12)
	assert.InDelta(t, 0.0, m.ResidualStdErr, 1e-12)
}

func TestFitConstantResponse(t *testing.T) {
	m, err := Fit([]float64{1, 2, 3, 4}, []float64{5, 5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Slope)
	assert.Equal(t, 5.0, m.Intercept)
	assert.Equal(t, 1.0, m.RSquared)
	assert.Equal(t, 0.0, m.ResidualStdErr)

	// reports carrying the model must stay encodable
	_, err = json.Marshal(m)
	assert.NoError(t, err)

	b, err := NewBand(m, PredictionBand, 0.95, 5)
	require.NoError(t, err)
	for i := range b.X {
		assert.Equal(t, 0.0, b.Width(i))
	}
}

func TestFitPreconditions(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Fit([]float64{1, 2}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Fit([]float64{4, 4, 4, 4}, []float64{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrDegeneratePredictor)

	_, err = Fit([]float64{1, math.NaN(), 3}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = Fit([]float64{1, 2, 3}, []float64{1, math.Inf(1), 3})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))

	xs := Linspace(-2, 7, 1000)
	require.Len(t, xs, 1000)
	assert.Equal(t, -2.0, xs[0])
	assert.Equal(t, 7.0, xs[999])
}

func TestConfidenceBandMatchesClosedForm(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)

	b, err := NewBand(m, ConfidenceBand, 0.95, 5)
	require.NoError(t, err)
	require.Len(t, b.X, 5)
	assert.Equal(t, "confidence", b.Kind.String())

	// t(0.975, 3 dof) = 3.182446, sd = sqrt(0.8), at x = mean: dy = q*sd*sqrt(1/5)
	const q = 3.182446305284263
	assert.InDelta(t, 3.0, b.X[2], 1e-12)
	assert.InDelta(t, 4.0, b.Fit[2], 1e-12)
	assert.InDelta(t, q*math.Sqrt(0.8)*math.Sqrt(0.2), b.Upper[2]-4.0, 1e-6)

	// at x = 1: sx = 4, sxd = 10
	dy := q * math.Sqrt(0.8) * math.Sqrt(0.2+0.4)
	assert.InDelta(t, 2.8-dy, b.Lower[0], 1e-6)
	assert.InDelta(t, 2.8+dy, b.Upper[0], 1e-6)
}

func TestBandShape(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)

	conf, err := NewBand(m, ConfidenceBand, 0.95, 101)
	require.NoError(t, err)
	pred, err := NewBand(m, PredictionBand, 0.95, 101)
	require.NoError(t, err)
	narrow, err := NewBand(m, ConfidenceBand, 0.5, 101)
	require.NoError(t, err)

	narrowest := 0
	for i := range conf.X {
		assert.LessOrEqual(t, conf.Lower[i], conf.Fit[i])
		assert.GreaterOrEqual(t, conf.Upper[i], conf.Fit[i])
		assert.Less(t, pred.Lower[i], conf.Lower[i])
		assert.Greater(t, pred.Upper[i], conf.Upper[i])
		assert.Less(t, narrow.Width(i), conf.Width(i))
		if conf.Width(i) < conf.Width(narrowest) {
			narrowest = i
		}
	}
	// narrowest where x is the mean of the data
	assert.InDelta(t, m.MeanX, conf.X[narrowest], 0.05)
}

func TestPredictionBandClosedForm(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)
	b, err := NewBand(m, PredictionBand, 0.95, 5)
	require.NoError(t, err)
	assert.Equal(t, "prediction", b.Kind.String())
	assert.InDelta(t, 3.118144, b.Upper[2]-b.Fit[2], 1e-5)
}

func TestBandRejectsNaNLevel(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)
	_, err = NewBand(m, ConfidenceBand, math.NaN(), 10)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	assert.False(t, validLevel(math.NaN()))
	assert.True(t, validLevel(0.5))
}

func TestBandValidation(t *testing.T) {
	m, err := Fit(smallX, smallY)
	require.NoError(t, err)

	_, err = NewBand(m, ConfidenceBand, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	_, err = NewBand(m, ConfidenceBand, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	_, err = NewBand(m, ConfidenceBand, 0.9, 1)
	assert.ErrorIs(t, err, ErrInvalidSamples)
	_, err = NewBand(nil, ConfidenceBand, 0.9, 10)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMeanSquaredError(t *testing.T) {
	mse, err := MeanSquaredError([]float64{1, 2, 3}, []float64{1, 4, 0})
	require.NoError(t, err)
	assert.InDelta(t, 13.0/3.0, mse, 1e-12)

	_, err = MeanSquaredError([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = MeanSquaredError(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func roundAll(xs []float64) []float64 {
	ret := make([]float64, len(xs))
	for i, x := range xs {
		ret[i] = math.Round(x*1e9) / 1e9
	}
	return ret
}
