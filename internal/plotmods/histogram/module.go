// Package histogram ships the builtin histogram plot module. It registers
// itself in the process-wide catalog so a modules root only needs a manifest
// naming it.
package histogram

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/plugins"
	"github.com/tyemirov/plotforge/internal/results"
)

// ModuleName is the manifest name resolving to this module.
const ModuleName = "histogram"

const (
	moduleVersionConstant            = "1.0.0"
	valueDistributionItemConstant    = "value_distribution"
	histogramGroupConstant           = "distribution"
	binCountConstant                 = 10
	outputFileTemplateConstant       = "%s.svg"
	outputFilePermissionConstant     = 0o644
	noNumericColumnErrorConstant     = "dataset has no numeric column to bin"
	emptyDatasetErrorConstant        = "dataset has no rows"
	outputWriteErrorTemplateConstant = "unable to write plot file: %v"
	contextCancelledErrorTemplate    = "plot generation cancelled: %v"
	unknownItemErrorTemplateConstant = "unknown plot item %q"
	fullQualityScoreConstant         = 100.0
)

func init() {
	plugins.RegisterBuiltin(ModuleName, Capabilities())
}

// Capabilities returns the module's capability set. Exposed so tests and
// alternate catalogs can register the module under their own names.
func Capabilities() plugins.Capabilities {
	return plugins.Capabilities{
		Metadata:       metadata,
		AvailablePlots: availablePlots,
		GeneratePlot:   generatePlot,
		GenerateBatch:  generateBatch,
	}
}

func metadata() plugins.ModuleMetadata {
	return plugins.ModuleMetadata{Name: ModuleName, Version: moduleVersionConstant}
}

func availablePlots() []plugins.PlotJob {
	return []plugins.PlotJob{
		{Identifier: valueDistributionItemConstant, Group: histogramGroupConstant},
	}
}

func generatePlot(executionContext context.Context, dataset dataload.Dataset, identifier string, options plugins.GenerationOptions) plugins.PlotResult {
	startTime := time.Now()

	if contextError := executionContext.Err(); contextError != nil {
		return failedPlot(startTime, fmt.Sprintf(contextCancelledErrorTemplate, contextError))
	}
	if identifier != valueDistributionItemConstant {
		return failedPlot(startTime, fmt.Sprintf(unknownItemErrorTemplateConstant, identifier))
	}
	if len(dataset.Rows) == 0 {
		return failedPlot(startTime, emptyDatasetErrorConstant)
	}

	columnName, numericValues, parsedShare := firstNumericColumn(dataset)
	if len(columnName) == 0 {
		return failedPlot(startTime, noNumericColumnErrorConstant)
	}

	binCounts, lowerBound, binWidth := binValues(numericValues, binCountConstant)
	svgDocument := renderHistogramSVG(columnName, binCounts, lowerBound, binWidth)

	outputPath := filepath.Join(options.OutputDirectory, fmt.Sprintf(outputFileTemplateConstant, identifier))
	if writeError := os.WriteFile(outputPath, []byte(svgDocument), outputFilePermissionConstant); writeError != nil {
		return failedPlot(startTime, fmt.Sprintf(outputWriteErrorTemplateConstant, writeError))
	}

	plotStatus := results.StatusSuccess
	qualityScore := parsedShare * fullQualityScoreConstant
	if qualityScore < fullQualityScoreConstant {
		plotStatus = results.StatusPartial
	}

	return plugins.PlotResult{
		Status:       plotStatus,
		OutputPath:   outputPath,
		QualityScore: qualityScore,
		Duration:     time.Since(startTime),
	}
}

func generateBatch(executionContext context.Context, dataset dataload.Dataset, identifiers []string, options plugins.GenerationOptions) map[string]plugins.PlotResult {
	batchResults := make(map[string]plugins.PlotResult, len(identifiers))
	for _, identifier := range identifiers {
		itemResult := generatePlot(executionContext, dataset, identifier, options)
		batchResults[identifier] = itemResult
		if itemResult.Status == results.StatusFailed && !options.ContinueOnError {
			break
		}
	}
	return batchResults
}

func failedPlot(startTime time.Time, errorDetail string) plugins.PlotResult {
	return plugins.PlotResult{
		Status:   results.StatusFailed,
		Err:      errorDetail,
		Duration: time.Since(startTime),
	}
}

// firstNumericColumn picks the leftmost column where at least half of the
// populated cells parse as numbers, returning the parsed values and the share
// of rows that contributed one.
func firstNumericColumn(dataset dataload.Dataset) (string, []float64, float64) {
	for columnIndex, columnName := range dataset.Columns {
		parsedValues := make([]float64, 0, len(dataset.Rows))
		populatedCells := 0
		for _, row := range dataset.Rows {
			if columnIndex >= len(row) {
				continue
			}
			cellValue := strings.TrimSpace(row[columnIndex])
			if len(cellValue) == 0 {
				continue
			}
			populatedCells++
			parsedValue, parseError := strconv.ParseFloat(cellValue, 64)
			if parseError == nil {
				parsedValues = append(parsedValues, parsedValue)
			}
		}
		if populatedCells > 0 && len(parsedValues)*2 >= populatedCells {
			return columnName, parsedValues, float64(len(parsedValues)) / float64(len(dataset.Rows))
		}
	}
	return "", nil, 0
}

func binValues(values []float64, binCount int) ([]int, float64, float64) {
	minimumValue := values[0]
	maximumValue := values[0]
	for _, value := range values {
		minimumValue = math.Min(minimumValue, value)
		maximumValue = math.Max(maximumValue, value)
	}

	binWidth := (maximumValue - minimumValue) / float64(binCount)
	if binWidth == 0 {
		binWidth = 1
	}

	binCounts := make([]int, binCount)
	for _, value := range values {
		binIndex := int((value - minimumValue) / binWidth)
		if binIndex >= binCount {
			binIndex = binCount - 1
		}
		binCounts[binIndex]++
	}
	return binCounts, minimumValue, binWidth
}

func renderHistogramSVG(columnName string, binCounts []int, lowerBound float64, binWidth float64) string {
	const (
		chartWidth   = 640
		chartHeight  = 400
		marginBottom = 40
		barGap       = 4
	)

	maximumCount := 1
	for _, binCount := range binCounts {
		if binCount > maximumCount {
			maximumCount = binCount
		}
	}

	barWidth := (chartWidth - barGap*(len(binCounts)+1)) / len(binCounts)
	var document strings.Builder
	fmt.Fprintf(&document, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, chartWidth, chartHeight)
	fmt.Fprintf(&document, `<title>%s distribution</title>`, columnName)
	for binIndex, binCount := range binCounts {
		barHeight := (chartHeight - marginBottom) * binCount / maximumCount
		barX := barGap + binIndex*(barWidth+barGap)
		barY := chartHeight - marginBottom - barHeight
		fmt.Fprintf(&document, `<rect x="%d" y="%d" width="%d" height="%d" fill="steelblue"><title>[%.2f, %.2f): %d</title></rect>`,
			barX, barY, barWidth, barHeight,
			lowerBound+float64(binIndex)*binWidth, lowerBound+float64(binIndex+1)*binWidth, binCount)
	}
	document.WriteString(`</svg>`)
	return document.String()
}
