package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/shiftbook/rosterscan/internal/model"
)

func TestWriteShifts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shifts.xlsx")
	records := []model.ShiftRecord{
		{ID: "r1", JobConfigID: "job-bar", Date: "2026-01-14", StartTime: "09:00", EndTime: "16:30", Hours: 7.5},
		{ID: "r2", JobConfigID: "job-unknown", Date: "2026-01-15", Hours: 4},
	}
	jobNames := map[string]string{"job-bar": "Bar"}

	require.NoError(t, WriteShifts(path, records, jobNames))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Shifts", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Date", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Hours", sheet.Rows[0].Cells[4].Value)

	assert.Equal(t, "2026-01-14", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "Bar", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "16:30", sheet.Rows[1].Cells[3].Value)
	assert.Equal(t, "7.50", sheet.Rows[1].Cells[4].Value)

	// Unknown job ids fall back to the raw id.
	assert.Equal(t, "job-unknown", sheet.Rows[2].Cells[1].Value)
	assert.Equal(t, "4.00", sheet.Rows[2].Cells[4].Value)
}

func TestXLSXSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sink.xlsx")
	sink := NewXLSXSink(path, map[string]string{"job-bar": "Bar"})

	ctx := context.Background()
	require.NoError(t, sink.SaveShifts(ctx, "user-1", []model.ShiftRecord{
		{ID: "r1", JobConfigID: "job-bar", Date: "2026-01-14", Hours: 7.5},
	}))
	require.NoError(t, sink.SaveShifts(ctx, "user-1", []model.ShiftRecord{
		{ID: "r2", JobConfigID: "job-bar", Date: "2026-01-15", Hours: 6},
	}))
	assert.Equal(t, 2, sink.Count())

	require.NoError(t, sink.Flush())

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets[0].Rows, 3, "header plus both buffered records")
}
