package domain

import "errors"

// Sentinel errors for the analysis pipeline. Callers wrap these with
// fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrMissingColumn aborts a build when an input table lacks a
	// required column.
	ErrMissingColumn = errors.New("required column missing")

	// ErrUnknownReference aborts a build when a link or transfer row
	// references an account or device that is not in the input tables.
	// Dangling references are rejected, never silently dropped.
	ErrUnknownReference = errors.New("reference to unknown node")

	// ErrNotFound reports an unknown account or device id. The query
	// layer converts it into a structured error record rather than
	// surfacing it to callers.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable reports an unreachable external graph
	// store. Fatal for the pass; retry policy belongs to the caller.
	ErrBackendUnavailable = errors.New("graph backend unavailable")

	// ErrInvalidInput reports malformed parameters (negative depth,
	// bad weights, empty ids).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoAnalysis reports that no analysis pass has completed yet.
	ErrNoAnalysis = errors.New("no completed analysis")
)
