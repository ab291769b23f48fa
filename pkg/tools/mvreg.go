package tools

import (
	"fmt"
	"sync"

	"github.com/richard-senior/mvreg/internal/logger"
	"github.com/richard-senior/mvreg/pkg/protocol"
	"github.com/richard-senior/mvreg/pkg/util"
	"github.com/richard-senior/mvreg/pkg/util/mvreg"
)

// the agent from the most recent evaluation, reused by predictions
var (
	agentMu     sync.Mutex
	cachedAgent *mvreg.LinearAgent
)

// ResetCachedAgent forgets the agent kept from the last evaluation
func ResetCachedAgent() {
	agentMu.Lock()
	defer agentMu.Unlock()
	cachedAgent = nil
}

func EvaluateTool() protocol.Tool {
	return protocol.Tool{
		Name: "mvreg_evaluate",
		Description: `
		Fits four linear regressions of team outcome against squad market value
		(points ~ average value, points ~ total value, position ~ average value, position ~ total value)
		on a training csv, scores each by mean squared error on a test csv and writes a 2x2 svg chart
		of the fits with their confidence and prediction bands.
		Returns slope, intercept, R² and test loss for each model.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"train_path": {
					Type:        "string",
					Description: "Path to the training csv. Needs avg_mv, total_mv, pos and pts columns. Defaults to the configured train_path.",
				},
				"test_path": {
					Type:        "string",
					Description: "Path to the test csv, same columns as the training csv. Defaults to the configured test_path.",
				},
				"chart_path": {
					Type:        "string",
					Description: "Where to write the svg chart. Defaults to the configured chart_path.",
				},
				"confidence": {
					Type:        "number",
					Description: "Confidence band level between 0 and 1 exclusive, eg 0.95",
				},
			},
			Required: []string{},
		},
	}
}

// HandleEvaluateTool trains a fresh agent on the requested data and keeps it for later predictions
func HandleEvaluateTool(params any) (any, error) {
	paramsMap := map[string]any{}
	if params != nil {
		m, ok := params.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("Couldn't format the parameters as a map of strings")
		}
		paramsMap = m
	}

	cfg := *mvreg.Config
	// explicit csv paths always read csv, whatever the configured source
	if v, ok := paramsMap["train_path"]; ok {
		s, err := util.GetAsString(v)
		if err != nil {
			return nil, fmt.Errorf("train_path: %w", err)
		}
		cfg.TrainPath = s
		cfg.Source = mvreg.SourceCSV
	}
	if v, ok := paramsMap["test_path"]; ok {
		s, err := util.GetAsString(v)
		if err != nil {
			return nil, fmt.Errorf("test_path: %w", err)
		}
		cfg.TestPath = s
		cfg.Source = mvreg.SourceCSV
	}
	if v, ok := paramsMap["chart_path"]; ok {
		s, err := util.GetAsString(v)
		if err != nil {
			return nil, fmt.Errorf("chart_path: %w", err)
		}
		cfg.ChartPath = s
	}
	if v, ok := paramsMap["confidence"]; ok {
		f, err := util.GetAsFloat(v)
		if err != nil {
			return nil, fmt.Errorf("confidence: %w", err)
		}
		cfg.Confidence = f
	}

	ev, err := mvreg.RunEvaluation(&cfg)
	if err != nil {
		return nil, err
	}

	agentMu.Lock()
	cachedAgent = ev.Agent
	agentMu.Unlock()

	logger.Info("Evaluation complete", ev.ChartPath)
	ret := map[string]any{
		"models":           ev.Report.Models,
		"trainRows":        ev.Report.TrainRows,
		"testRows":         ev.Report.TestRows,
		"confidence":       ev.Report.Confidence,
		"trainFingerprint": ev.Report.TrainFingerprint,
		"chart":            ev.ChartPath,
	}
	if ev.RunID != "" {
		ret["runId"] = ev.RunID
	}
	return ret, nil
}

func PredictTool() protocol.Tool {
	return protocol.Tool{
		Name: "mvreg_predict",
		Description: `
		Predicts a team's outcome from its squad market value using a fitted linear model.
		By default predicts league points from average squad market value.
		Uses the models from the last mvreg_evaluate call, or fits them from the configured data.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"market_value": {
					Type:        "number",
					Description: "The squad market value to predict from, in the same units as the training data",
				},
				"model": {
					Type: "string",
					Description: `
					Which regression to use:
					- avg_pts (default): points from average market value
					- total_pts: points from total market value
					- avg_pos: league position from average market value
					- total_pos: league position from total market value
					`,
				},
			},
			Required: []string{"market_value"},
		},
	}
}

func HandlePredictTool(params any) (any, error) {
	paramsMap, ok := params.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Couldn't format the parameters as a map of strings")
	}
	raw, ok := paramsMap["market_value"]
	if !ok {
		return nil, fmt.Errorf("No market_value parameter was sent")
	}
	x, err := util.GetAsFloat(raw)
	if err != nil {
		return nil, fmt.Errorf("market_value: %w", err)
	}

	key := mvreg.AvgPts
	if v, ok := paramsMap["model"]; ok {
		s, err := util.GetAsString(v)
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		if key, err = mvreg.ParseModelKey(s); err != nil {
			return nil, err
		}
	}

	agent, err := currentAgent()
	if err != nil {
		return nil, err
	}
	ys, err := agent.PredictWith(key, []float64{x})
	if err != nil {
		return nil, err
	}
	m, err := agent.Model(key)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"model":        key,
		"market_value": x,
		"prediction":   ys[0],
		"slope":        m.Slope,
		"intercept":    m.Intercept,
		"rSquared":     m.RSquared,
	}, nil
}

// currentAgent returns the cached agent, training one from the configured data if needed
func currentAgent() (*mvreg.LinearAgent, error) {
	agentMu.Lock()
	defer agentMu.Unlock()
	if cachedAgent != nil && cachedAgent.Trained() {
		return cachedAgent, nil
	}

	logger.Info("No trained agent cached, training from configured data")
	train, err := mvreg.LoadDataset(mvreg.Config, mvreg.SplitTrain)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}
	agent, err := mvreg.NewLinearAgentFromConfig(mvreg.Config)
	if err != nil {
		return nil, err
	}
	if err := agent.Train(train); err != nil {
		return nil, err
	}
	cachedAgent = agent
	return agent, nil
}

func RunsTool() protocol.Tool {
	return protocol.Tool{
		Name:        "mvreg_runs",
		Description: "Lists the most recent stored evaluation runs, newest first. Needs a configured db_path.",
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"limit": {
					Type:        "integer",
					Description: "Maximum number of rows to return, default 20",
				},
			},
			Required: []string{},
		},
	}
}

func HandleRunsTool(params any) (any, error) {
	limit := 20
	if paramsMap, ok := params.(map[string]any); ok {
		if v, ok := paramsMap["limit"]; ok {
			n, err := util.GetAsInteger(v)
			if err != nil {
				return nil, fmt.Errorf("limit: %w", err)
			}
			limit = n
		}
	}
	if mvreg.Config.DbPath == "" {
		return nil, fmt.Errorf("no db_path configured, evaluation runs are not being stored")
	}
	store, err := mvreg.OpenStore(mvreg.Config.DbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	runs, err := store.RecentRuns(limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"runs": runs}, nil
}
