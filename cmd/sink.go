package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/shiftbook/rosterscan/internal/export"
	"github.com/shiftbook/rosterscan/internal/model"
)

// scanSink receives committed shift records, possibly from several
// controllers at once in batch mode. With an output path set they land in an
// XLSX file; otherwise they are printed.
type scanSink struct {
	out  string
	xlsx *export.XLSXSink

	mu      sync.Mutex
	printed []model.ShiftRecord
}

func newScanSink(env *scanEnv, out string) *scanSink {
	s := &scanSink{out: out}
	if out != "" {
		names := make(map[string]string)
		for _, j := range env.registry.List() {
			names[j.ID] = j.Name
		}
		s.xlsx = export.NewXLSXSink(out, names)
	}
	return s
}

func (s *scanSink) SaveShifts(ctx context.Context, userID string, records []model.ShiftRecord) error {
	if s.xlsx != nil {
		return s.xlsx.SaveShifts(ctx, userID, records)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printed = append(s.printed, records...)
	return nil
}

func (s *scanSink) finish() error {
	if s.xlsx != nil {
		if err := s.xlsx.Flush(); err != nil {
			return err
		}
		fmt.Printf("wrote %d shifts to %s\n", s.xlsx.Count(), s.out)
		return nil
	}
	s.mu.Lock()
	count := len(s.printed)
	s.mu.Unlock()
	fmt.Printf("committed %d shifts\n", count)
	return nil
}
