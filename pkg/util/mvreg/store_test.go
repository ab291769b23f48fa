package mvreg

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "mvreg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenStoreRejectsEmptyPath(t *testing.T) {
	_, err := OpenStore("")
	assert.Error(t, err)
}

func TestGenerateCreateTableSQL(t *testing.T) {
	sql := generateCreateTableSQL(&TeamSeason{}, "team_seasons")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS team_seasons (")
	assert.Contains(t, sql, "avg_mv REAL NOT NULL")
	assert.Contains(t, sql, "PRIMARY KEY (full, year, split)")

	idx := generateIndexSQL(&EvaluationRun{}, "evaluation_runs")
	assert.Contains(t, idx, "CREATE INDEX IF NOT EXISTS idx_evaluation_runs_run_id ON evaluation_runs(run_id)")

	where, values := buildWhereClause(map[string]interface{}{"year": 2015, "full": "Arsenal"})
	assert.Equal(t, "full = ? AND year = ?", where)
	assert.Equal(t, []interface{}{"Arsenal", 2015}, values)
}

func TestImportAndLoadSeasons(t *testing.T) {
	store := openTestStore(t)
	train := syntheticSeasons("train", 12, 0)

	require.NoError(t, store.ImportSeasons(train, SplitTrain))
	// the caller's rows are left alone
	assert.Equal(t, "", train.Rows[0].Split)

	loaded, err := store.LoadSeasons(SplitTrain)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Len())
	assert.Equal(t, train.Fingerprint(), sortedLike(train, loaded).Fingerprint())

	// importing again updates rather than duplicating
	train.Rows[0].Points = 99
	require.NoError(t, store.ImportSeasons(train, SplitTrain))
	loaded, err = store.LoadSeasons(SplitTrain)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Len())

	got := &TeamSeason{}
	require.NoError(t, store.FindByPrimaryKey(got, map[string]interface{}{"full": "Team 0", "year": 2010, "split": SplitTrain}))
	assert.Equal(t, 99.0, got.Points)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = store.LoadSeasons(SplitTest)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	assert.ErrorIs(t, store.ImportSeasons(&Dataset{}, SplitTest), ErrEmptyDataset)
	assert.Error(t, store.ImportSeasons(train, "validation"))
}

func TestImportNamesAnonymousRows(t *testing.T) {
	store := openTestStore(t)
	ds := syntheticSeasons("anon", 3, 0)
	for _, r := range ds.Rows {
		r.Full = ""
		r.Year = 0
	}
	require.NoError(t, store.ImportSeasons(ds, SplitTest))

	ok, err := store.Exists(&TeamSeason{Full: "anon#2", Split: SplitTest})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportRejectsRepeatedSeasons(t *testing.T) {
	store := openTestStore(t)
	// without a year column every row lands in season 0
	ds, err := ReadCSV("noyear", strings.NewReader("full,avg_mv,total_mv,pos,pts\n"+
		"Arsenal,10,200,2,80\n"+
		"Chelsea,9,180,4,70\n"+
		"Arsenal,11,210,1,85\n"))
	require.NoError(t, err)

	err = store.ImportSeasons(ds, SplitTrain)
	require.ErrorIs(t, err, ErrDuplicateSeason)
	assert.Contains(t, err.Error(), "Arsenal")
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "line 4")

	// nothing was written
	_, err = store.LoadSeasons(SplitTrain)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	// the same team in different seasons is fine
	ds, err = ReadCSV("years", strings.NewReader("full,year,avg_mv,total_mv,pos,pts\n"+
		"Arsenal,2019,10,200,2,80\n"+
		"Chelsea,2019,9,180,4,70\n"+
		"Arsenal,2020,11,210,1,85\n"))
	require.NoError(t, err)
	require.NoError(t, store.ImportSeasons(ds, SplitTrain))
	loaded, err := store.LoadSeasons(SplitTrain)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	// rows built in code are located by position
	dupes := syntheticSeasons("built", 3, 0)
	dupes.Rows[2].Full, dupes.Rows[2].Year = dupes.Rows[0].Full, dupes.Rows[0].Year
	err = store.ImportSeasons(dupes, SplitTest)
	require.ErrorIs(t, err, ErrDuplicateSeason)
	assert.Contains(t, err.Error(), "row 3")
}

func TestStoreCrud(t *testing.T) {
	store := openTestStore(t)
	row := &TeamSeason{Full: "Leeds", Year: 2019, Split: SplitTest, AvgMV: 1, TotalMV: 2, Position: 3, Points: 4}

	require.NoError(t, store.Save(row))
	ok, err := store.Exists(row)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := store.FindAll(&TeamSeason{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Delete(row))
	err = store.FindByPrimaryKey(&TeamSeason{}, row.GetPrimaryKey())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDatasetFromSQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SourceSQLite
	cfg.DbPath = filepath.Join(t.TempDir(), "seasons.db")

	store, err := OpenStore(cfg.DbPath)
	require.NoError(t, err)
	require.NoError(t, store.ImportSeasons(syntheticSeasons("train", 8, 0), SplitTrain))
	require.NoError(t, store.ImportSeasons(syntheticSeasons("test", 4, 8), SplitTest))
	require.NoError(t, store.Close())

	train, err := LoadDataset(cfg, SplitTrain)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	test, err := LoadDataset(cfg, SplitTest)
	require.NoError(t, err)
	assert.Equal(t, 4, test.Len())
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	report := &Report{
		Confidence:       0.95,
		TrainFingerprint: "abc",
		Models: []ModelReport{
			{Key: AvgPts, Slope: 1, Intercept: 2, RSquared: 0.5, TestLoss: 3, TrainRows: 10, TestRows: 5},
			{Key: TotalPos, Slope: -1, Intercept: 20, RSquared: 0.7, TestLoss: 4, TrainRows: 10, TestRows: 5},
		},
	}
	runs := NewEvaluationRuns(report)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].RunID, runs[1].RunID)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	require.NoError(t, store.SaveRuns(runs))

	got, err := store.RecentRuns(0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	keys := []string{got[0].ModelKey, got[1].ModelKey}
	assert.ElementsMatch(t, []string{"avg_pts", "total_pos"}, keys)
	assert.Equal(t, "abc", got[0].TrainFingerprint)

	limited, err := store.RecentRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	bad := &EvaluationRun{RunID: "r", ModelKey: "avg_gd"}
	assert.Error(t, store.Save(bad))
}

// sortedLike reorders loaded to follow the row order of src by team name
func sortedLike(src, loaded *Dataset) *Dataset {
	byName := map[string]*TeamSeason{}
	for _, r := range loaded.Rows {
		byName[r.Full] = r
	}
	ret := &Dataset{Name: loaded.Name}
	for _, r := range src.Rows {
		ret.Rows = append(ret.Rows, byName[r.Full])
	}
	return ret
}
