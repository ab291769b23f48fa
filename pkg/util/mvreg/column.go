package mvreg

import (
	"fmt"

	"github.com/richard-senior/mvreg/pkg/util"
)

// Column identifies a field of the season summary table, in the table's column order
type Column int

const (
	AvgMV Column = iota
	AvgAge
	Full
	Short
	TotalMV
	Pos
	GD
	Pts
	Year
)

var columnKeys = [...]string{
	AvgMV:   "avg_mv",
	AvgAge:  "avg_age",
	Full:    "full",
	Short:   "short",
	TotalMV: "total_mv",
	Pos:     "pos",
	GD:      "gd",
	Pts:     "pts",
	Year:    "year",
}

var defaultLabels = [...]string{
	AvgMV:   "Average Market Value",
	AvgAge:  "Average Age",
	Full:    "Team",
	Short:   "Short Name",
	TotalMV: "Total Market Value",
	Pos:     "Position",
	GD:      "Goal Difference",
	Pts:     "Points",
	Year:    "Year",
}

// AllColumns lists every column in table order
func AllColumns() []Column {
	cols := make([]Column, len(columnKeys))
	for i := range columnKeys {
		cols[i] = Column(i)
	}
	return cols
}

func (c Column) Valid() bool {
	return c >= AvgMV && c <= Year
}

// Key is the canonical snake_case name, as used in csv headers and config
func (c Column) Key() string {
	if !c.Valid() {
		return "unknown"
	}
	return columnKeys[c]
}

func (c Column) String() string {
	return c.Key()
}

// Numeric reports whether the column holds a number
func (c Column) Numeric() bool {
	return c.Valid() && c != Full && c != Short
}

// ParseColumn resolves a canonical key or default label, ignoring case and punctuation
func ParseColumn(name string) (Column, error) {
	norm := util.NormaliseKey(name)
	for i, key := range columnKeys {
		if norm == key || norm == util.NormaliseKey(defaultLabels[i]) {
			return Column(i), nil
		}
	}
	return -1, fmt.Errorf("unknown column %q", name)
}

// ColumnLabels maps columns to human readable axis labels
type ColumnLabels map[Column]string

// DefaultColumnLabels returns a fresh copy of the built in labels
func DefaultColumnLabels() ColumnLabels {
	ret := make(ColumnLabels, len(defaultLabels))
	for i, l := range defaultLabels {
		ret[Column(i)] = l
	}
	return ret
}

// Label returns the label for c, falling back to the default
func (l ColumnLabels) Label(c Column) string {
	if s, ok := l[c]; ok && s != "" {
		return s
	}
	if c.Valid() {
		return defaultLabels[c]
	}
	return c.Key()
}
