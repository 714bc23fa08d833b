package engine

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Shared collapses identical in-flight calls onto one underlying run.
// Callers arriving while a run for the same (dataset, year) is active
// receive its result instead of starting a second process.
type Shared struct {
	next  ReportGenerator
	gen   singleflight.Group
	years singleflight.Group
}

// NewShared wraps next.
func NewShared(next ReportGenerator) *Shared {
	return &Shared{next: next}
}

func (s *Shared) Generate(ctx context.Context, datasetID, year string) (Result, error) {
	v, err, _ := s.gen.Do(datasetID+"\x00"+year, func() (interface{}, error) {
		return s.next.Generate(context.WithoutCancel(ctx), datasetID, year)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Shared) AvailableYears(ctx context.Context, datasetID string) ([]int, error) {
	v, err, _ := s.years.Do(datasetID, func() (interface{}, error) {
		return s.next.AvailableYears(context.WithoutCancel(ctx), datasetID)
	})
	if err != nil {
		return nil, err
	}
	years := v.([]int)
	out := make([]int, len(years))
	copy(out, years)
	return out, nil
}
