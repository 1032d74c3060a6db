// Package export writes committed shift records to spreadsheet files.
package export

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/shiftbook/rosterscan/internal/model"
)

var shiftHeaders = []string{"Date", "Job", "Start", "End", "Hours"}

// WriteShifts writes shift records to an XLSX file with a header row.
func WriteShifts(path string, records []model.ShiftRecord, jobNames map[string]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Shifts")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range shiftHeaders {
		header.AddCell().Value = h
	}

	for _, rec := range records {
		name := jobNames[rec.JobConfigID]
		if name == "" {
			name = rec.JobConfigID
		}
		row := sheet.AddRow()
		row.AddCell().Value = rec.Date
		row.AddCell().Value = name
		row.AddCell().Value = rec.StartTime
		row.AddCell().Value = rec.EndTime
		row.AddCell().Value = fmt.Sprintf("%.2f", rec.Hours)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// XLSXSink accumulates committed shifts and flushes them to a single file.
// It satisfies the pipeline's shift sink so a CLI scan can land directly in
// a spreadsheet.
type XLSXSink struct {
	path     string
	jobNames map[string]string

	mu      sync.Mutex
	records []model.ShiftRecord
}

// NewXLSXSink creates a sink that writes to path on Flush.
func NewXLSXSink(path string, jobNames map[string]string) *XLSXSink {
	return &XLSXSink{path: path, jobNames: jobNames}
}

// SaveShifts buffers the records for the next Flush.
func (s *XLSXSink) SaveShifts(ctx context.Context, userID string, records []model.ShiftRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Flush writes everything received so far to the target file.
func (s *XLSXSink) Flush() error {
	s.mu.Lock()
	records := make([]model.ShiftRecord, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()
	return WriteShifts(s.path, records, s.jobNames)
}

// Count returns the number of buffered records.
func (s *XLSXSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
