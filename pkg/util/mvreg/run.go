package mvreg

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/mvreg/internal/logger"
)

// EvaluationRun records one model's scores from one evaluation
type EvaluationRun struct {
	ID               string    `json:"id" column:"id" dbtype:"TEXT NOT NULL" primary:"true"`
	RunID            string    `json:"runId" column:"run_id" dbtype:"TEXT NOT NULL" index:"true"`
	ModelKey         string    `json:"model" column:"model_key" dbtype:"TEXT NOT NULL" index:"true"`
	Slope            float64   `json:"slope" column:"slope" dbtype:"REAL NOT NULL"`
	Intercept        float64   `json:"intercept" column:"intercept" dbtype:"REAL NOT NULL"`
	RSquared         float64   `json:"rSquared" column:"r_squared" dbtype:"REAL NOT NULL"`
	TestLoss         float64   `json:"testLoss" column:"test_loss" dbtype:"REAL NOT NULL"`
	TrainRows        int       `json:"trainRows" column:"train_rows" dbtype:"INTEGER NOT NULL"`
	TestRows         int       `json:"testRows" column:"test_rows" dbtype:"INTEGER NOT NULL"`
	Confidence       float64   `json:"confidence" column:"confidence" dbtype:"REAL NOT NULL"`
	TrainFingerprint string    `json:"trainFingerprint" column:"train_fingerprint" dbtype:"TEXT NOT NULL DEFAULT ''"`
	CreatedAt        time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP" index:"true"`
}

// NewEvaluationRuns turns a report into one row per model sharing a run id
func NewEvaluationRuns(report *Report) []*EvaluationRun {
	runID := uuid.New().String()
	now := time.Now()
	ret := make([]*EvaluationRun, 0, len(report.Models))
	for _, mr := range report.Models {
		ret = append(ret, &EvaluationRun{
			ID:               uuid.New().String(),
			RunID:            runID,
			ModelKey:         string(mr.Key),
			Slope:            mr.Slope,
			Intercept:        mr.Intercept,
			RSquared:         mr.RSquared,
			TestLoss:         mr.TestLoss,
			TrainRows:        mr.TrainRows,
			TestRows:         mr.TestRows,
			Confidence:       report.Confidence,
			TrainFingerprint: report.TrainFingerprint,
			CreatedAt:        now,
		})
	}
	return ret
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

func (r *EvaluationRun) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{"id": r.ID}
}

func (r *EvaluationRun) GetTableName() string {
	return "evaluation_runs"
}

func (r *EvaluationRun) BeforeSave() error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.RunID == "" {
		return fmt.Errorf("evaluation run needs a run id")
	}
	if _, err := ParseModelKey(r.ModelKey); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

func (r *EvaluationRun) AfterSave() error {
	return nil
}

// SaveRuns stores the rows of one evaluation together
func (s *Store) SaveRuns(runs []*EvaluationRun) error {
	objs := make([]Persistable, len(runs))
	for i, r := range runs {
		objs[i] = r
	}
	if err := s.BulkSave(objs); err != nil {
		return fmt.Errorf("failed to save evaluation runs: %w", err)
	}
	logger.Info("Saved evaluation runs", len(runs))
	return nil
}

// RecentRuns returns up to limit rows, newest first
func (s *Store) RecentRuns(limit int) ([]*EvaluationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := s.FindWhere(&EvaluationRun{}, "1 = 1 ORDER BY created_at DESC, run_id, model_key LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	ret := make([]*EvaluationRun, 0, len(results))
	for _, r := range results {
		ret = append(ret, r.(*EvaluationRun))
	}
	return ret, nil
}
