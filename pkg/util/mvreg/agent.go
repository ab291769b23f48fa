package mvreg

import (
	"errors"
	"fmt"

	"github.com/richard-senior/mvreg/internal/logger"
	"github.com/richard-senior/mvreg/pkg/util"
	"gonum.org/v1/gonum/floats"
)

var ErrNotTrained = errors.New("agent has not been trained")

// ModelKey names one of the four regressions
type ModelKey string

const (
	AvgPts   ModelKey = "avg_pts"
	TotalPts ModelKey = "total_pts"
	AvgPos   ModelKey = "avg_pos"
	TotalPos ModelKey = "total_pos"
)

// modelSpec binds a regression to its columns and its place in the chart grid
type modelSpec struct {
	Key    ModelKey
	X, Y   Column
	Legend string
	Row    int
	Col    int
}

// grid order, row by row
var modelSpecs = [4]modelSpec{
	{Key: AvgPts, X: AvgMV, Y: Pts, Legend: "Points", Row: 0, Col: 0},
	{Key: TotalPts, X: TotalMV, Y: Pts, Legend: "Points", Row: 0, Col: 1},
	{Key: AvgPos, X: AvgMV, Y: Pos, Legend: "Position", Row: 1, Col: 0},
	{Key: TotalPos, X: TotalMV, Y: Pos, Legend: "Position", Row: 1, Col: 1},
}

// ModelKeys lists the regressions in grid order
func ModelKeys() []ModelKey {
	ret := make([]ModelKey, len(modelSpecs))
	for i, s := range modelSpecs {
		ret[i] = s.Key
	}
	return ret
}

func ParseModelKey(s string) (ModelKey, error) {
	for _, spec := range modelSpecs {
		if string(spec.Key) == s {
			return spec.Key, nil
		}
	}
	return "", fmt.Errorf("unknown model %q, expected one of %v", s, ModelKeys())
}

func specFor(key ModelKey) (modelSpec, error) {
	for _, spec := range modelSpecs {
		if spec.Key == key {
			return spec, nil
		}
	}
	return modelSpec{}, fmt.Errorf("unknown model %q", key)
}

type trainedModel struct {
	model      *LinearModel
	confidence *Band
	prediction *Band
}

// LinearAgent fits and evaluates the four market value regressions together
type LinearAgent struct {
	confidence     float64
	predictionBand float64
	bandSamples    int
	chartWidth     int
	chartHeight    int

	models map[ModelKey]*trainedModel
}

type AgentOption func(*LinearAgent)

// WithBandSamples sets how many x samples each band carries
func WithBandSamples(n int) AgentOption {
	return func(a *LinearAgent) {
		a.bandSamples = n
	}
}

// WithChartSize sets the size of the rendered grid in px
func WithChartSize(width, height int) AgentOption {
	return func(a *LinearAgent) {
		a.chartWidth = width
		a.chartHeight = height
	}
}

// NewLinearAgent creates an untrained agent with the given band levels
func NewLinearAgent(confidence, predictionBand float64, opts ...AgentOption) (*LinearAgent, error) {
	a := &LinearAgent{
		confidence:     confidence,
		predictionBand: predictionBand,
		bandSamples:    1000,
		chartWidth:     1000,
		chartHeight:    800,
	}
	for _, opt := range opts {
		opt(a)
	}
	if !validLevel(confidence) {
		return nil, fmt.Errorf("confidence: %w, got %v", ErrInvalidLevel, confidence)
	}
	if !validLevel(predictionBand) {
		return nil, fmt.Errorf("prediction band: %w, got %v", ErrInvalidLevel, predictionBand)
	}
	if a.bandSamples < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSamples, a.bandSamples)
	}
	return a, nil
}

// DefaultLinearAgent uses 95% confidence and prediction bands
func DefaultLinearAgent() *LinearAgent {
	a, _ := NewLinearAgent(0.95, 0.95)
	return a
}

// NewLinearAgentFromConfig builds an agent from the interval and chart settings of cfg
func NewLinearAgentFromConfig(cfg *MvregConfig) (*LinearAgent, error) {
	return NewLinearAgent(cfg.Confidence, cfg.PredictionBand,
		WithBandSamples(cfg.BandSamples), WithChartSize(cfg.ChartWidth, cfg.ChartHeight))
}

func (a *LinearAgent) Confidence() float64 {
	return a.confidence
}

func (a *LinearAgent) PredictionBand() float64 {
	return a.predictionBand
}

func (a *LinearAgent) Trained() bool {
	return a.models != nil
}

// Train fits all four models and their bands; on any failure the agent is left untrained
func (a *LinearAgent) Train(train *Dataset) error {
	a.models = nil
	if train.Len() == 0 {
		return ErrEmptyDataset
	}

	models := make(map[ModelKey]*trainedModel, len(modelSpecs))
	for _, spec := range modelSpecs {
		tm, err := a.fit(train, spec)
		if err != nil {
			return fmt.Errorf("failed to train %s: %w", spec.Key, err)
		}
		logger.Debug("Trained model", string(spec.Key), tm.model.String())
		models[spec.Key] = tm
	}
	a.models = models
	logger.Info("Trained linear agent", train.Name, train.Len())
	return nil
}

func (a *LinearAgent) fit(train *Dataset, spec modelSpec) (*trainedModel, error) {
	xs, err := train.Values(spec.X)
	if err != nil {
		return nil, err
	}
	ys, err := train.Values(spec.Y)
	if err != nil {
		return nil, err
	}
	m, err := Fit(xs, ys)
	if err != nil {
		return nil, err
	}
	conf, err := NewBand(m, ConfidenceBand, a.confidence, a.bandSamples)
	if err != nil {
		return nil, err
	}
	pred, err := NewBand(m, PredictionBand, a.predictionBand, a.bandSamples)
	if err != nil {
		return nil, err
	}
	return &trainedModel{model: m, confidence: conf, prediction: pred}, nil
}

func (a *LinearAgent) trained(key ModelKey) (*trainedModel, error) {
	if !a.Trained() {
		return nil, ErrNotTrained
	}
	tm, ok := a.models[key]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", key)
	}
	return tm, nil
}

// Model returns the fitted line for key
func (a *LinearAgent) Model(key ModelKey) (*LinearModel, error) {
	tm, err := a.trained(key)
	if err != nil {
		return nil, err
	}
	return tm.model, nil
}

// Bands returns the confidence and prediction bands for key
func (a *LinearAgent) Bands(key ModelKey) (confidence, prediction *Band, err error) {
	tm, err := a.trained(key)
	if err != nil {
		return nil, nil, err
	}
	return tm.confidence, tm.prediction, nil
}

// Predict estimates points from average market value
func (a *LinearAgent) Predict(xs []float64) ([]float64, error) {
	return a.PredictWith(AvgPts, xs)
}

// PredictWith evaluates the model named by key at each x
func (a *LinearAgent) PredictWith(key ModelKey, xs []float64) ([]float64, error) {
	m, err := a.Model(key)
	if err != nil {
		return nil, err
	}
	return m.PredictAll(xs), nil
}

// ModelReport summarises one regression after evaluation
type ModelReport struct {
	Key       ModelKey `json:"model"`
	X         string   `json:"x"`
	Y         string   `json:"y"`
	Slope     float64  `json:"slope"`
	Intercept float64  `json:"intercept"`
	RSquared  float64  `json:"rSquared"`
	TestLoss  float64  `json:"testLoss"`
	TrainRows int      `json:"trainRows"`
	TestRows  int      `json:"testRows"`
}

// Report is the outcome of evaluating all four models
type Report struct {
	Models           []ModelReport `json:"models"`
	TrainRows        int           `json:"trainRows"`
	TestRows         int           `json:"testRows"`
	Confidence       float64       `json:"confidence"`
	PredictionBand   float64       `json:"predictionBand"`
	TrainFingerprint string        `json:"trainFingerprint"`
	Chart            *util.SVG     `json:"-"`
}

// Model returns the report for key, or nil
func (r *Report) Model(key ModelKey) *ModelReport {
	for i := range r.Models {
		if r.Models[i].Key == key {
			return &r.Models[i]
		}
	}
	return nil
}

// Evaluate scores each model on the test set and renders the 2x2 chart grid
func (a *LinearAgent) Evaluate(train, test *Dataset, labels ColumnLabels) (*Report, error) {
	if !a.Trained() {
		return nil, ErrNotTrained
	}
	if train.Len() == 0 {
		return nil, fmt.Errorf("%w: training set", ErrEmptyDataset)
	}
	if test.Len() == 0 {
		return nil, fmt.Errorf("%w: test set", ErrEmptyDataset)
	}
	if labels == nil {
		labels = DefaultColumnLabels()
	}

	report := &Report{
		TrainRows:        train.Len(),
		TestRows:         test.Len(),
		Confidence:       a.confidence,
		PredictionBand:   a.predictionBand,
		TrainFingerprint: train.Fingerprint(),
	}

	var panels [4]Panel
	for i, spec := range modelSpecs {
		tm := a.models[spec.Key]

		testX, err := test.Values(spec.X)
		if err != nil {
			return nil, err
		}
		testY, err := test.Values(spec.Y)
		if err != nil {
			return nil, err
		}
		loss, err := MeanSquaredError(testY, tm.model.PredictAll(testX))
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", spec.Key, err)
		}

		trainX, err := train.Values(spec.X)
		if err != nil {
			return nil, err
		}
		trainY, err := train.Values(spec.Y)
		if err != nil {
			return nil, err
		}
		lineX := Linspace(floats.Min(trainX), floats.Max(trainX), len(trainX))

		report.Models = append(report.Models, ModelReport{
			Key:       spec.Key,
			X:         spec.X.Key(),
			Y:         spec.Y.Key(),
			Slope:     tm.model.Slope,
			Intercept: tm.model.Intercept,
			RSquared:  tm.model.RSquared,
			TestLoss:  loss,
			TrainRows: len(trainX),
			TestRows:  len(testX),
		})

		panels[i] = Panel{
			Title:       fmt.Sprintf("Test Set Loss:%.2f", loss),
			Legend:      spec.Legend,
			FitLabel:    fmt.Sprintf("Linear R²=%.2f", tm.model.RSquared),
			HideXTicks:  spec.Row == 0,
			HideYTicks:  spec.Col == 1,
			LegendRight: spec.Row == 1,
			ScatterX:    trainX,
			ScatterY:    trainY,
			LineX:       lineX,
			LineY:       tm.model.PredictAll(lineX),
			Confidence:  tm.confidence,
			Prediction:  tm.prediction,
		}
		if spec.Col == 0 {
			panels[i].YLabel = labels.Label(spec.Y)
		}
		if spec.Row == 1 {
			panels[i].XLabel = labels.Label(spec.X)
		}
		logger.Debug("Evaluated model", string(spec.Key), loss)
	}

	chart, err := RenderGrid(panels, a.chartWidth, a.chartHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	report.Chart = chart
	return report, nil
}
