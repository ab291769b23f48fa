package mvreg

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mvreg"

// Metrics exposes the latest evaluation as prometheus gauges
type Metrics struct {
	registry *prometheus.Registry

	rSquared       *prometheus.GaugeVec
	testLoss       *prometheus.GaugeVec
	slope          *prometheus.GaugeVec
	intercept      *prometheus.GaugeVec
	datasetRows    *prometheus.GaugeVec
	lastEvaluation prometheus.Gauge
}

// NewMetrics registers the gauges on registry, a fresh one when nil
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	auto := promauto.With(registry)
	m := &Metrics{registry: registry}

	m.rSquared = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "model",
		Name:      "r_squared",
		Help:      "Coefficient of determination of each fitted model on the training set",
	}, []string{"model"})

	m.testLoss = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "model",
		Name:      "test_loss",
		Help:      "Mean squared error of each model on the test set",
	}, []string{"model"})

	m.slope = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "model",
		Name:      "slope",
		Help:      "Fitted slope of each model",
	}, []string{"model"})

	m.intercept = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "model",
		Name:      "intercept",
		Help:      "Fitted intercept of each model",
	}, []string{"model"})

	m.datasetRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "dataset",
		Name:      "rows",
		Help:      "Rows in each side of the train/test split",
	}, []string{"split"})

	m.lastEvaluation = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_evaluation_timestamp_seconds",
		Help:      "Unix time of the most recent evaluation",
	})
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records an evaluation report
func (m *Metrics) Observe(report *Report) {
	for _, mr := range report.Models {
		key := string(mr.Key)
		m.rSquared.WithLabelValues(key).Set(mr.RSquared)
		m.testLoss.WithLabelValues(key).Set(mr.TestLoss)
		m.slope.WithLabelValues(key).Set(mr.Slope)
		m.intercept.WithLabelValues(key).Set(mr.Intercept)
	}
	m.datasetRows.WithLabelValues(SplitTrain).Set(float64(report.TrainRows))
	m.datasetRows.WithLabelValues(SplitTest).Set(float64(report.TestRows))
	m.lastEvaluation.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the gauges in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
