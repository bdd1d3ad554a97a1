package dataload

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/tyemirov/plotforge/internal/results"
)

const (
	datasetPathMissingMessageConstant    = "dataset path not provided"
	datasetOpenErrorTemplateConstant     = "unable to open dataset %s: %w"
	datasetParseErrorTemplateConstant    = "unable to parse dataset %s: %w"
	datasetEmptyMessageTemplateConstant  = "dataset %s contains no header row"
	datasetNoRowsWarningTemplateConstant = "dataset %s contains a header but no data rows"
	missingColumnErrorTemplateConstant   = "required column %q not present in dataset"
	raggedRowWarningTemplateConstant     = "%d rows had a column count different from the header"
	fullQualityScoreConstant             = 100.0
)

// QualityMetrics breaks the dataset quality score into its components.
type QualityMetrics struct {
	CompletenessPercent float64
	SchemaMatchPercent  float64
}

// LoadOutcome reports the loaded dataset together with quality diagnostics.
type LoadOutcome struct {
	Data           Dataset
	RowCount       int
	ColumnCount    int
	QualityScore   float64
	QualityMetrics QualityMetrics
	Status         results.Status
	Warnings       []string
	Errors         []string
}

// Loader produces a LoadOutcome for a dataset path and its required columns.
type Loader interface {
	Load(executionContext context.Context, datasetPath string, requiredColumns []string) (LoadOutcome, error)
}

// CSVLoader reads comma-separated datasets from the local filesystem.
type CSVLoader struct{}

// NewCSVLoader constructs a CSVLoader.
func NewCSVLoader() CSVLoader {
	return CSVLoader{}
}

// Load reads the dataset, validates the required columns, and scores quality.
// Schema mismatches mark the outcome failed; incomplete cells only lower the
// completeness metric and surface as warnings.
func (loader CSVLoader) Load(executionContext context.Context, datasetPath string, requiredColumns []string) (LoadOutcome, error) {
	outcome := LoadOutcome{Status: results.StatusSuccess}

	trimmedPath := strings.TrimSpace(datasetPath)
	if len(trimmedPath) == 0 {
		outcome.Status = results.StatusFailed
		outcome.Errors = append(outcome.Errors, datasetPathMissingMessageConstant)
		return outcome, nil
	}

	if contextError := executionContext.Err(); contextError != nil {
		return outcome, contextError
	}

	datasetFile, openError := os.Open(trimmedPath)
	if openError != nil {
		outcome.Status = results.StatusFailed
		outcome.Errors = append(outcome.Errors, fmt.Errorf(datasetOpenErrorTemplateConstant, trimmedPath, openError).Error())
		return outcome, nil
	}
	defer datasetFile.Close()

	csvReader := csv.NewReader(datasetFile)
	csvReader.FieldsPerRecord = -1
	records, parseError := csvReader.ReadAll()
	if parseError != nil {
		outcome.Status = results.StatusFailed
		outcome.Errors = append(outcome.Errors, fmt.Errorf(datasetParseErrorTemplateConstant, trimmedPath, parseError).Error())
		return outcome, nil
	}

	if len(records) == 0 {
		outcome.Status = results.StatusFailed
		outcome.Errors = append(outcome.Errors, fmt.Sprintf(datasetEmptyMessageTemplateConstant, trimmedPath))
		return outcome, nil
	}

	header := normalizeColumns(records[0])
	dataset := Dataset{SourcePath: trimmedPath, Columns: header, Rows: records[1:]}
	outcome.Data = dataset
	outcome.RowCount = dataset.RowCount()
	outcome.ColumnCount = dataset.ColumnCount()

	matchedColumns := 0
	for _, requiredColumn := range requiredColumns {
		if _, present := dataset.ColumnIndex(requiredColumn); present {
			matchedColumns++
			continue
		}
		outcome.Status = results.StatusFailed
		outcome.Errors = append(outcome.Errors, fmt.Sprintf(missingColumnErrorTemplateConstant, requiredColumn))
	}

	outcome.QualityMetrics.SchemaMatchPercent = fullQualityScoreConstant
	if len(requiredColumns) > 0 {
		outcome.QualityMetrics.SchemaMatchPercent = fullQualityScoreConstant * float64(matchedColumns) / float64(len(requiredColumns))
	}

	outcome.QualityMetrics.CompletenessPercent = completenessPercent(dataset, &outcome)
	outcome.QualityScore = (outcome.QualityMetrics.CompletenessPercent + outcome.QualityMetrics.SchemaMatchPercent) / 2

	if outcome.Status == results.StatusFailed {
		return outcome, nil
	}

	if outcome.RowCount == 0 {
		outcome.Status = results.StatusPartial
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(datasetNoRowsWarningTemplateConstant, trimmedPath))
	} else if outcome.QualityMetrics.CompletenessPercent < fullQualityScoreConstant {
		outcome.Status = results.StatusPartial
	}

	return outcome, nil
}

func completenessPercent(dataset Dataset, outcome *LoadOutcome) float64 {
	if dataset.RowCount() == 0 || dataset.ColumnCount() == 0 {
		return fullQualityScoreConstant
	}

	totalCells := 0
	filledCells := 0
	raggedRows := 0
	for _, row := range dataset.Rows {
		if len(row) != dataset.ColumnCount() {
			raggedRows++
		}
		for _, cell := range row {
			totalCells++
			if len(strings.TrimSpace(cell)) > 0 {
				filledCells++
			}
		}
	}

	if raggedRows > 0 {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(raggedRowWarningTemplateConstant, raggedRows))
	}
	if totalCells == 0 {
		return fullQualityScoreConstant
	}
	return fullQualityScoreConstant * float64(filledCells) / float64(totalCells)
}

func normalizeColumns(rawColumns []string) []string {
	normalized := make([]string, 0, len(rawColumns))
	for _, column := range rawColumns {
		normalized = append(normalized, strings.TrimSpace(column))
	}
	return normalized
}
