// Package plugins defines the plot module contract, filesystem discovery of
// module manifests, and the loader that turns discovered manifests into
// verified, independently owned module instances.
package plugins

import (
	"context"
	"time"

	"github.com/tyemirov/plotforge/internal/dataload"
	"github.com/tyemirov/plotforge/internal/results"
)

// ModuleMetadata identifies a plot module implementation.
type ModuleMetadata struct {
	Name    string
	Version string
}

// PlotJob describes one requested unit of plot generation.
type PlotJob struct {
	Identifier string
	Group      string
	Parameters map[string]any
}

// PlotResult reports the outcome of generating a single plot.
type PlotResult struct {
	Status       results.Status
	OutputPath   string
	QualityScore float64
	Duration     time.Duration
	Err          string
}

// GenerationOptions carries rendering parameters shared by every item of a batch.
type GenerationOptions struct {
	OutputDirectory string
	Resolution      int
	ContinueOnError bool
}

// MetadataFunc returns the module's identifying metadata.
type MetadataFunc func() ModuleMetadata

// AvailablePlotsFunc enumerates the work items the module can generate.
type AvailablePlotsFunc func() []PlotJob

// GeneratePlotFunc produces one plot for the given item identifier.
type GeneratePlotFunc func(executionContext context.Context, dataset dataload.Dataset, identifier string, options GenerationOptions) PlotResult

// GenerateBatchFunc produces plots for every listed identifier, attempting the
// remaining items of the batch even when an individual item fails.
type GenerateBatchFunc func(executionContext context.Context, dataset dataload.Dataset, identifiers []string, options GenerationOptions) map[string]PlotResult

// Capabilities bundles the four functions a plot module must provide. A nil
// field is an observable missing capability the loader reports by name.
type Capabilities struct {
	Metadata       MetadataFunc
	AvailablePlots AvailablePlotsFunc
	GeneratePlot   GeneratePlotFunc
	GenerateBatch  GenerateBatchFunc
}

// Capability function names used in manifests and load diagnostics.
const (
	CapabilityMetadataName       = "metadata"
	CapabilityAvailablePlotsName = "available_plots"
	CapabilityGeneratePlotName   = "generate_plot"
	CapabilityGenerateBatchName  = "generate_batch"
)

// RequiredCapabilityNames lists every capability a module must expose, in
// verification order.
func RequiredCapabilityNames() []string {
	return []string{
		CapabilityMetadataName,
		CapabilityAvailablePlotsName,
		CapabilityGeneratePlotName,
		CapabilityGenerateBatchName,
	}
}
