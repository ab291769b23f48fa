package mvreg

import (
	"errors"
	"fmt"
	"time"

	"github.com/richard-senior/mvreg/internal/logger"
)

const (
	SplitTrain = "train"
	SplitTest  = "test"
)

var ErrDuplicateSeason = errors.New("team season appears more than once")

// TeamSeason is one team's market value and league outcome for one season
type TeamSeason struct {
	Full      string    `json:"full" column:"full" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Year      int       `json:"year" column:"year" dbtype:"INTEGER NOT NULL" primary:"true" index:"true"`
	Split     string    `json:"split" column:"split" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Short     string    `json:"short" column:"short" dbtype:"TEXT NOT NULL DEFAULT ''"`
	AvgMV     float64   `json:"avgMv" column:"avg_mv" dbtype:"REAL NOT NULL"`
	AvgAge    float64   `json:"avgAge" column:"avg_age" dbtype:"REAL NOT NULL DEFAULT 0"`
	TotalMV   float64   `json:"totalMv" column:"total_mv" dbtype:"REAL NOT NULL"`
	Position  float64   `json:"pos" column:"pos" dbtype:"REAL NOT NULL"`
	GoalDiff  float64   `json:"gd" column:"gd" dbtype:"REAL NOT NULL DEFAULT 0"`
	Points    float64   `json:"pts" column:"pts" dbtype:"REAL NOT NULL"`
	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`

	// csv line the row was read from, 0 when it came from elsewhere
	Line int `json:"-"`
}

// Value returns the numeric value held in column c
func (t *TeamSeason) Value(c Column) (float64, error) {
	switch c {
	case AvgMV:
		return t.AvgMV, nil
	case AvgAge:
		return t.AvgAge, nil
	case TotalMV:
		return t.TotalMV, nil
	case Pos:
		return t.Position, nil
	case GD:
		return t.GoalDiff, nil
	case Pts:
		return t.Points, nil
	case Year:
		return float64(t.Year), nil
	}
	return 0, fmt.Errorf("column %s is not numeric", c)
}

// set stores a parsed csv cell; text columns take raw, numeric ones take num
func (t *TeamSeason) set(c Column, raw string, num float64) {
	switch c {
	case Full:
		t.Full = raw
	case Short:
		t.Short = raw
	case AvgMV:
		t.AvgMV = num
	case AvgAge:
		t.AvgAge = num
	case TotalMV:
		t.TotalMV = num
	case Pos:
		t.Position = num
	case GD:
		t.GoalDiff = num
	case Pts:
		t.Points = num
	case Year:
		t.Year = int(num)
	}
}

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

// GetPrimaryKey returns the primary key as a map
func (t *TeamSeason) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"full":  t.Full,
		"year":  t.Year,
		"split": t.Split,
	}
}

// GetTableName returns the table name for team seasons
func (t *TeamSeason) GetTableName() string {
	return "team_seasons"
}

// BeforeSave is called before saving the season
func (t *TeamSeason) BeforeSave() error {
	if t.Full == "" {
		return fmt.Errorf("team season needs a team name")
	}
	if t.Split != SplitTrain && t.Split != SplitTest {
		return fmt.Errorf("team season split must be %q or %q, got %q", SplitTrain, SplitTest, t.Split)
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return nil
}

// AfterSave is called after saving the season
func (t *TeamSeason) AfterSave() error {
	return nil
}

/////////////////////////////////////////////////////////////////////////
////// Season Collection Operations
/////////////////////////////////////////////////////////////////////////

// ImportSeasons stores the dataset rows under the given split, replacing matching rows
func (s *Store) ImportSeasons(ds *Dataset, split string) error {
	if ds == nil || ds.Len() == 0 {
		return ErrEmptyDataset
	}
	logger.Info("Saving team seasons to database", ds.Len(), split)

	type seasonKey struct {
		full string
		year int
	}
	seen := make(map[seasonKey]int, ds.Len())
	objs := make([]Persistable, 0, ds.Len())
	for i, row := range ds.Rows {
		r := *row
		if r.Full == "" {
			// unnamed csv rows still need a unique key
			r.Full = fmt.Sprintf("%s#%d", ds.Name, i+1)
		}
		r.Split = split

		// a save would silently replace the earlier row
		k := seasonKey{r.Full, r.Year}
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s %s season %d at %s and %s, add a year column or distinct names",
				ErrDuplicateSeason, ds.Name, r.Full, r.Year, rowLocation(ds.Rows[prev], prev), rowLocation(row, i))
		}
		seen[k] = i
		objs = append(objs, &r)
	}
	if err := s.BulkSave(objs); err != nil {
		return fmt.Errorf("failed to bulk save seasons: %w", err)
	}
	logger.Info("Bulk saved team seasons", len(objs))
	return nil
}

func rowLocation(r *TeamSeason, i int) string {
	if r.Line > 0 {
		return fmt.Sprintf("line %d", r.Line)
	}
	return fmt.Sprintf("row %d", i+1)
}

// LoadSeasons reads every row of the given split, oldest season first
func (s *Store) LoadSeasons(split string) (*Dataset, error) {
	results, err := s.FindWhere(&TeamSeason{}, "split = ? ORDER BY year, full", split)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Name: split}
	for _, r := range results {
		ds.Rows = append(ds.Rows, r.(*TeamSeason))
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no %s rows in %s", ErrEmptyDataset, split, s.Path)
	}
	return ds, nil
}
