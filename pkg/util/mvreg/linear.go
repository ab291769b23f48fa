package mvreg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrLengthMismatch      = errors.New("x and y lengths differ")
	ErrInsufficientData    = errors.New("at least 3 observations are needed")
	ErrNonFinite           = errors.New("observations must be finite")
	ErrDegeneratePredictor = errors.New("predictor has zero variance")
	ErrInvalidLevel        = errors.New("interval level must lie strictly between 0 and 1")
	ErrInvalidSamples      = errors.New("band needs at least 2 samples")
)

// LinearModel is a fitted univariate least squares line y = Slope*x + Intercept
type LinearModel struct {
	Slope          float64 `json:"slope"`
	Intercept      float64 `json:"intercept"`
	RSquared       float64 `json:"rSquared"`
	N              int     `json:"n"`
	ResidualStdErr float64 `json:"residualStdErr"` // sqrt(SSE / (n-2))
	SlopeStdErr    float64 `json:"slopeStdErr"`
	MeanX          float64 `json:"meanX"`
	SXX            float64 `json:"sxx"` // sum of squared deviations of x
	MinX           float64 `json:"minX"`
	MaxX           float64 `json:"maxX"`
}

// Fit performs ordinary least squares of y on x
func Fit(x, y []float64) (*LinearModel, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return nil, fmt.Errorf("%w, got %d", ErrInsufficientData, n)
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
	}

	meanX := stat.Mean(x, nil)
	var sxx float64
	for _, v := range x {
		d := v - meanX
		sxx += d * d
	}
	if sxx == 0 {
		return nil, ErrDegeneratePredictor
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	var sse float64
	for i := range x {
		r := y[i] - (slope*x[i] + intercept)
		sse += r * r
	}
	sd := math.Sqrt(sse / float64(n-2))

	// a constant response is fitted exactly by the flat line
	r2 := 1.0
	if floats.Max(y) != floats.Min(y) {
		r2 = stat.RSquared(x, y, nil, intercept, slope)
	}

	return &LinearModel{
		Slope:          slope,
		Intercept:      intercept,
		RSquared:       r2,
		N:              n,
		ResidualStdErr: sd,
		SlopeStdErr:    sd / math.Sqrt(sxx),
		MeanX:          meanX,
		SXX:            sxx,
		MinX:           floats.Min(x),
		MaxX:           floats.Max(x),
	}, nil
}

// Predict evaluates the fitted line at x
func (m *LinearModel) Predict(x float64) float64 {
	return m.Slope*x + m.Intercept
}

// PredictAll evaluates the fitted line at every x
func (m *LinearModel) PredictAll(xs []float64) []float64 {
	ret := make([]float64, len(xs))
	for i, x := range xs {
		ret[i] = m.Predict(x)
	}
	return ret
}

func (m *LinearModel) String() string {
	return fmt.Sprintf("LinearModel{y = %.4f*x %+.4f, R²: %.4f, n: %d}", m.Slope, m.Intercept, m.RSquared, m.N)
}

// Linspace returns n evenly spaced values from lo to hi inclusive
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// BandKind distinguishes intervals on the mean response from intervals on new observations
type BandKind int

const (
	ConfidenceBand BandKind = iota
	PredictionBand
)

func (k BandKind) String() string {
	if k == PredictionBand {
		return "prediction"
	}
	return "confidence"
}

// Band is a pointwise interval around the fitted line sampled across the observed x range
type Band struct {
	Kind  BandKind  `json:"kind"`
	Level float64   `json:"level"`
	X     []float64 `json:"x"`
	Fit   []float64 `json:"fit"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// validLevel is false for NaN as well as anything outside (0, 1)
func validLevel(level float64) bool {
	return level > 0 && level < 1
}

// NewBand computes a t-distribution based band of the given kind for model m
func NewBand(m *LinearModel, kind BandKind, level float64, samples int) (*Band, error) {
	if !validLevel(level) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidLevel, level)
	}
	if samples < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSamples, samples)
	}
	if m == nil || m.N < 3 || m.SXX <= 0 {
		return nil, ErrInsufficientData
	}

	alpha := 1 - level
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.N - 2)}
	q := t.Quantile(1 - alpha/2)

	// the extra 1 accounts for the spread of a single new observation
	extra := 0.0
	if kind == PredictionBand {
		extra = 1
	}

	b := &Band{
		Kind:  kind,
		Level: level,
		X:     Linspace(m.MinX, m.MaxX, samples),
		Fit:   make([]float64, samples),
		Lower: make([]float64, samples),
		Upper: make([]float64, samples),
	}
	n := float64(m.N)
	for i, x := range b.X {
		y := m.Predict(x)
		d := x - m.MeanX
		dy := q * m.ResidualStdErr * math.Sqrt(extra+1/n+d*d/m.SXX)
		b.Fit[i] = y
		b.Lower[i] = y - dy
		b.Upper[i] = y + dy
	}
	return b, nil
}

// Width returns Upper-Lower at sample i
func (b *Band) Width(i int) float64 {
	return b.Upper[i] - b.Lower[i]
}

// MeanSquaredError is the mean of squared differences between actual and predicted
func MeanSquaredError(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return 0, ErrEmptyDataset
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, predicted)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}
