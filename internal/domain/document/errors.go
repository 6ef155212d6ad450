package document

import (
	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// Violation classifies a FormatError.
type Violation string

const (
	ViolationEmptyText    Violation = "empty_text"
	ViolationMissing      Violation = "missing_marker"
	ViolationOrder        Violation = "marker_order"
	ViolationPosition     Violation = "marker_position"
	ViolationEmptySection Violation = "empty_section"
)

// FormatError reports a structural problem with a sectioned document. Marker
// names the offending marker and Position is its rune offset, or -1 when the
// marker is absent.
type FormatError struct {
	Marker    string
	Violation Violation
	Position  int
	Message   string
}

func (e *FormatError) Error() string { return e.Message }

// Code maps the violation onto its pkg/errors code.
func (e *FormatError) Code() pkgerrors.ErrorCode {
	switch e.Violation {
	case ViolationMissing:
		return pkgerrors.ErrCodeMarkerMissing
	case ViolationOrder:
		return pkgerrors.ErrCodeMarkerOrder
	case ViolationPosition:
		return pkgerrors.ErrCodeMarkerPosition
	case ViolationEmptySection:
		return pkgerrors.ErrCodeSectionEmpty
	default:
		return pkgerrors.ErrCodeDocumentFormat
	}
}

// Unwrap exposes the coded form so pkg/errors helpers and the HTTP layer
// classify format errors without knowing this type.
func (e *FormatError) Unwrap() error {
	return pkgerrors.New(e.Code(), e.Message).WithDetail(e.Marker)
}
