package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is returned when no valid catalog item is available.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrEmptyHistory is returned when a forecast is requested without any sales rows.
	ErrEmptyHistory = errors.New("sales history is empty")
	// ErrInvalidTargetDate is returned for a zero target date.
	ErrInvalidTargetDate = errors.New("target date is required")
	// ErrWorkLimitExceeded is returned when a request exceeds the configured evaluation cap.
	ErrWorkLimitExceeded = errors.New("optimization request exceeds work limit")
)

// InputDataError describes a malformed record that was excluded from processing.
type InputDataError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *InputDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s %s", e.Entity, e.ID, e.Field, e.Reason)
}

// DiagnosticKind classifies soft failures that skip a single record.
type DiagnosticKind string

const (
	DiagInputData           DiagnosticKind = "input_data"
	DiagInsufficientHistory DiagnosticKind = "insufficient_history"
	DiagCatalogMismatch     DiagnosticKind = "catalog_mismatch"
	DiagMissingPrediction   DiagnosticKind = "missing_prediction"
)

// Diagnostic is returned next to results whenever a record was skipped.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Location string         `json:"location,omitempty"`
	ItemID   string         `json:"item_id,omitempty"`
	Message  string         `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Location != "" && d.ItemID != "":
		return fmt.Sprintf("%s [%s/%s]: %s", d.Kind, d.Location, d.ItemID, d.Message)
	case d.ItemID != "":
		return fmt.Sprintf("%s [%s]: %s", d.Kind, d.ItemID, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// DiagnosticFromError converts an InputDataError into a diagnostic.
func DiagnosticFromError(location string, err error) Diagnostic {
	var ide *InputDataError
	if errors.As(err, &ide) {
		return Diagnostic{Kind: DiagInputData, Location: location, ItemID: ide.ID, Message: ide.Error()}
	}
	return Diagnostic{Kind: DiagInputData, Location: location, Message: err.Error()}
}

// CountByKind tallies diagnostics per kind.
func CountByKind(diags []Diagnostic) map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, d := range diags {
		out[d.Kind]++
	}
	return out
}
