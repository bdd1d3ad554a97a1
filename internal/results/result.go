// Package results defines the structured outcome value shared by every
// pipeline phase. The type is pure data so the same aggregation logic can be
// reused at phase boundaries and at the top level.
package results

import (
	"strings"
	"time"
)

// Status classifies the outcome of a phase or of the whole pipeline.
type Status string

// Supported result statuses, ordered from best to worst.
const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

const unknownResultNameConstant = "unnamed"

// Result captures status, diagnostics, and timing for a named unit of work.
type Result struct {
	Name         string
	Status       Status
	Message      string
	Errors       []string
	Warnings     []string
	PhaseResults map[string]any
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// NewResult constructs a Result in the success state with an empty diagnostic set.
func NewResult(name string) *Result {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		trimmedName = unknownResultNameConstant
	}
	return &Result{
		Name:         trimmedName,
		Status:       StatusSuccess,
		Errors:       []string{},
		Warnings:     []string{},
		PhaseResults: map[string]any{},
		StartTime:    time.Now().UTC(),
	}
}

// AddError appends the message to the error list and forces the failed status.
func (result *Result) AddError(message string) *Result {
	trimmedMessage := strings.TrimSpace(message)
	if len(trimmedMessage) == 0 {
		return result
	}
	result.Errors = append(result.Errors, trimmedMessage)
	result.Status = StatusFailed
	return result
}

// AddWarning appends the message to the warning list without changing status.
func (result *Result) AddWarning(message string) *Result {
	trimmedMessage := strings.TrimSpace(message)
	if len(trimmedMessage) == 0 {
		return result
	}
	result.Warnings = append(result.Warnings, trimmedMessage)
	return result
}

// SetStatus records a success or partial status together with a message.
// Failed is reserved for AddError, and a degraded status never improves:
// success is ignored once the result is partial or failed, and partial is
// ignored once the result is failed.
func (result *Result) SetStatus(status Status, message string) *Result {
	if status != StatusSuccess && status != StatusPartial {
		return result
	}
	if result.Status == StatusFailed {
		return result
	}
	if result.Status == StatusPartial && status == StatusSuccess {
		return result
	}
	result.Status = status
	result.Message = message
	return result
}

// AttachPhaseResult stores an opaque sub-result under the phase name.
func (result *Result) AttachPhaseResult(phaseName string, phaseResult any) *Result {
	trimmedPhaseName := strings.TrimSpace(phaseName)
	if len(trimmedPhaseName) == 0 {
		return result
	}
	if result.PhaseResults == nil {
		result.PhaseResults = map[string]any{}
	}
	result.PhaseResults[trimmedPhaseName] = phaseResult
	return result
}

// Finalize stamps the end time and duration. Subsequent calls are ignored so a
// result is finalized exactly once.
func (result *Result) Finalize() *Result {
	if !result.EndTime.IsZero() {
		return result
	}
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result
}

// Succeeded reports whether the result remained fully successful.
func (result *Result) Succeeded() bool {
	return result.Status == StatusSuccess
}

// Failed reports whether the result reached the failed state.
func (result *Result) Failed() bool {
	return result.Status == StatusFailed
}
