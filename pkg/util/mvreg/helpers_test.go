package mvreg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const canonicalHeader = "avg_mv,avg_age,full,short,total_mv,pos,gd,pts,year"

// syntheticSeasons builds n rows where value tracks points and league position with some scatter
func syntheticSeasons(name string, n, offset int) *Dataset {
	ds := &Dataset{Name: name}
	for i := 0; i < n; i++ {
		k := float64(i + offset)
		noise := float64((i*7)%5) - 2
		ds.Rows = append(ds.Rows, &TeamSeason{
			Full:     fmt.Sprintf("Team %d", i+offset),
			Short:    fmt.Sprintf("T%d", i+offset),
			Year:     2010 + (i+offset)%8,
			AvgMV:    1e6 + 2.5e5*k + 2e4*noise,
			AvgAge:   24 + float64(i%6)*0.5,
			TotalMV:  2.5e7 + 6e6*k + 1e5*noise,
			Position: 20 - 0.5*k - noise,
			GoalDiff: -20 + 2*k,
			Points:   30 + 1.5*k + 3*noise,
		})
	}
	return ds
}

func toCSV(ds *Dataset) string {
	var b strings.Builder
	b.WriteString(canonicalHeader + "\n")
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range ds.Rows {
		b.WriteString(strings.Join([]string{
			f(r.AvgMV), f(r.AvgAge), r.Full, r.Short, f(r.TotalMV),
			f(r.Position), f(r.GoalDiff), f(r.Points), strconv.Itoa(r.Year),
		}, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// testConfig points a csv sourced config at freshly written train and test files
func testConfig(t *testing.T) *MvregConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TrainPath = writeFile(t, dir, "train_data.csv", toCSV(syntheticSeasons("train", 40, 0)))
	cfg.TestPath = writeFile(t, dir, "test_data.csv", toCSV(syntheticSeasons("test", 10, 40)))
	cfg.ChartPath = filepath.Join(dir, "out", "chart.svg")
	cfg.BandSamples = 50
	return cfg
}
