// Package dataload loads the study dataset and scores its quality. The
// pipeline treats a failed load outcome as fatal; every other degradation is
// reported through warnings and the quality metrics.
package dataload

import "strings"

// Dataset holds the tabular study data handed to plot modules.
type Dataset struct {
	SourcePath string
	Columns    []string
	Rows       [][]string
}

// RowCount reports the number of data rows excluding the header.
func (dataset Dataset) RowCount() int {
	return len(dataset.Rows)
}

// ColumnCount reports the number of declared columns.
func (dataset Dataset) ColumnCount() int {
	return len(dataset.Columns)
}

// ColumnIndex resolves a column name to its position, case-insensitively.
func (dataset Dataset) ColumnIndex(columnName string) (int, bool) {
	trimmedName := strings.TrimSpace(columnName)
	for columnIndex, candidate := range dataset.Columns {
		if strings.EqualFold(strings.TrimSpace(candidate), trimmedName) {
			return columnIndex, true
		}
	}
	return 0, false
}
