package model

// OcrRow is a single table row recognised from the roster image.
type OcrRow []string

// OcrResult is the recognised roster content produced by the question phase.
// Once produced it is immutable input to the filter phase; the controller
// passes it back verbatim.
type OcrResult struct {
	Success         bool           `json:"success"`
	ContentType     string         `json:"contentType,omitempty"`
	TableType       string         `json:"tableType,omitempty"`
	Headers         []string       `json:"headers,omitempty"`
	Rows            []OcrRow       `json:"rows,omitempty"`
	ExtractedShifts []ParsedShift  `json:"extractedShifts,omitempty"`
	RawText         string         `json:"rawText,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}
