package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/model"
)

// buildRecords synthesizes final shift records from the selected, mapped
// shifts. The hour total comes from extraction when present; otherwise a
// shift with a start time but no end time gets the job's default
// weekday/weekend duration added to the start.
func (c *Controller) buildRecords(shifts []model.ParsedShift) []model.ShiftRecord {
	var records []model.ShiftRecord
	for _, s := range shifts {
		if !s.Selected || s.MappedJobID == "" {
			continue
		}

		rec := model.ShiftRecord{
			ID:          uuid.NewString(),
			JobConfigID: s.MappedJobID,
			Date:        s.Date,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
		}

		switch {
		case s.TotalHours != nil:
			rec.Hours = *s.TotalHours
		case s.StartTime != "" && s.EndTime == "":
			dur := c.registry.DefaultDuration(s.MappedJobID, model.IsWeekend(s.Date))
			if end, ok := addToClock(s.StartTime, dur); ok {
				rec.EndTime = end
				rec.Hours = dur.Hours()
			} else {
				zap.L().Warn("pipeline: unparseable start time, committing without hours",
					zap.String("shift", s.ID), zap.String("start", s.StartTime))
			}
		case s.StartTime != "" && s.EndTime != "":
			rec.Hours = clockSpanHours(s.StartTime, s.EndTime)
		}

		records = append(records, rec)
	}
	return records
}

// addToClock adds a duration to an HH:MM clock value, wrapping past
// midnight.
func addToClock(clock string, d time.Duration) (string, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", false
	}
	end := t.Add(d)
	return fmt.Sprintf("%02d:%02d", end.Hour(), end.Minute()), true
}

// clockSpanHours returns the hours between two HH:MM values, treating an
// end before the start as an overnight shift.
func clockSpanHours(start, end string) float64 {
	st, err := time.Parse("15:04", start)
	if err != nil {
		return 0
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return 0
	}
	span := et.Sub(st)
	if span < 0 {
		span += 24 * time.Hour
	}
	return span.Hours()
}
