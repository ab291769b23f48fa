package mvreg

import (
	"fmt"

	"github.com/richard-senior/mvreg/internal/logger"
)

// Evaluation is the result of a full train, score and render cycle
type Evaluation struct {
	Agent     *LinearAgent
	Report    *Report
	ChartPath string
	RunID     string
}

// RunEvaluation loads both splits per cfg, trains and evaluates a fresh agent,
// writes the chart and, when configured, the metrics textfile and the run history
func RunEvaluation(cfg *MvregConfig) (*Evaluation, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	train, err := LoadDataset(cfg, SplitTrain)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}
	test, err := LoadDataset(cfg, SplitTest)
	if err != nil {
		return nil, fmt.Errorf("failed to load test data: %w", err)
	}

	agent, err := NewLinearAgentFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := agent.Train(train); err != nil {
		return nil, err
	}
	report, err := agent.Evaluate(train, test, cfg.ColumnLabels())
	if err != nil {
		return nil, err
	}

	ret := &Evaluation{Agent: agent, Report: report}
	if cfg.ChartPath != "" {
		if err := report.Chart.ToSVGFile(cfg.ChartPath); err != nil {
			return nil, err
		}
		ret.ChartPath = cfg.ChartPath
		logger.Info("Wrote chart", cfg.ChartPath)
	}

	if cfg.MetricsPath != "" {
		m := NewMetrics(nil)
		m.Observe(report)
		if err := m.WriteTextfile(cfg.MetricsPath); err != nil {
			return nil, err
		}
		logger.Info("Wrote metrics", cfg.MetricsPath)
	}

	if cfg.DbPath != "" {
		store, err := OpenStore(cfg.DbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		runs := NewEvaluationRuns(report)
		if err := store.SaveRuns(runs); err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			ret.RunID = runs[0].RunID
		}
		logger.Inform("Stored evaluation run", ret.RunID, cfg.DbPath)
	}
	return ret, nil
}
