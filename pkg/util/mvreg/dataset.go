package mvreg

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/richard-senior/mvreg/internal/logger"
	"github.com/richard-senior/mvreg/pkg/transport"
	"github.com/richard-senior/mvreg/pkg/util"
)

// minimum similarity for a csv header to be taken as a column by fuzzy match
const headerMatchThreshold = 0.75

var ErrEmptyDataset = errors.New("dataset is empty")

// requiredColumns must be present in every csv for the four regressions
var requiredColumns = []Column{AvgMV, TotalMV, Pos, Pts}

// Dataset is an ordered set of team seasons, typically one side of the train/test split
type Dataset struct {
	Name string
	Rows []*TeamSeason
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Values extracts a numeric column in row order
func (d *Dataset) Values(c Column) ([]float64, error) {
	if !c.Numeric() {
		return nil, fmt.Errorf("column %s is not numeric", c)
	}
	ret := make([]float64, d.Len())
	for i, row := range d.Rows {
		v, err := row.Value(c)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

// Fingerprint hashes the analysed columns so runs can be traced back to their training data
func (d *Dataset) Fingerprint() string {
	h := xxhash.New()
	var buf [8]byte
	for _, row := range d.Rows {
		for _, v := range []float64{row.AvgMV, row.TotalMV, row.Position, row.Points} {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = h.Write(buf[:])
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// resolveHeader maps each csv header cell to a column, or -1 when unrecognised
func resolveHeader(header []string) ([]Column, error) {
	cols := make([]Column, len(header))
	seen := map[Column]bool{}

	for i, cell := range header {
		cols[i] = -1
		if c, err := ParseColumn(cell); err == nil {
			cols[i] = c
		} else {
			norm := util.NormaliseKey(cell)
			best, bestScore := Column(-1), 0.0
			for _, c := range AllColumns() {
				score := max(util.FuzzyMatchScore(norm, c.Key()), util.FuzzyMatchScore(norm, util.NormaliseKey(defaultLabels[c])))
				if score > bestScore {
					best, bestScore = c, score
				}
			}
			if bestScore >= headerMatchThreshold {
				logger.Debug("Fuzzy matched csv header", cell, best.Key(), bestScore)
				cols[i] = best
			}
		}
		if cols[i] >= 0 {
			if seen[cols[i]] {
				return nil, fmt.Errorf("csv header %q duplicates column %s", cell, cols[i])
			}
			seen[cols[i]] = true
		}
	}

	for _, c := range requiredColumns {
		if !seen[c] {
			return nil, fmt.Errorf("csv is missing required column %s", c)
		}
	}
	return cols, nil
}

// ReadCSV parses a header row followed by one team season per record
func ReadCSV(name string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header", ErrEmptyDataset, name)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols, err := resolveHeader(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Name: name}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		row := &TeamSeason{Line: line}
		for i, cell := range record {
			if i >= len(cols) || cols[i] < 0 {
				continue
			}
			c := cols[i]
			cell = strings.TrimSpace(cell)
			if !c.Numeric() {
				row.set(c, cell, 0)
				continue
			}
			num, err := parseNumber(c, cell)
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %s: %w", name, line, c, err)
			}
			row.set(c, cell, num)
		}
		ds.Rows = append(ds.Rows, row)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, name)
	}
	return ds, nil
}

// parseNumber accepts plain floats; years may be written as seasons like 2015/2016
func parseNumber(c Column, cell string) (float64, error) {
	if cell == "" {
		for _, req := range requiredColumns {
			if c == req {
				return 0, fmt.Errorf("missing value")
			}
		}
		return 0, nil
	}
	if c == Year {
		if before, _, ok := strings.Cut(cell, "/"); ok {
			cell = before
		}
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", cell)
	}
	return v, nil
}

// LoadCSV reads a dataset from a csv file or an http(s) url
func LoadCSV(path string) (*Dataset, error) {
	var r io.Reader
	if transport.IsURL(path) {
		data, err := transport.Fetch(path)
		if err != nil {
			return nil, fmt.Errorf("failed to download dataset: %w", err)
		}
		r = bytes.NewReader(data)
		if u, err := url.Parse(path); err == nil {
			path = u.Path
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()
		r = f
	}

	base := filepath.Base(path)
	ds, err := ReadCSV(strings.TrimSuffix(base, filepath.Ext(base)), r)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded dataset", ds.Name, ds.Len())
	return ds, nil
}

// LoadDataset loads the given split from wherever the config points
func LoadDataset(cfg *MvregConfig, split string) (*Dataset, error) {
	switch cfg.Source {
	case SourceSQLite:
		store, err := OpenStore(cfg.DbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadSeasons(split)
	case SourceCSV:
		if cfg.CABundle != "" {
			transport.SetCABundle(cfg.CABundle)
		}
		path := cfg.TrainPath
		if split == SplitTest {
			path = cfg.TestPath
		}
		return LoadCSV(path)
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.Source)
}
