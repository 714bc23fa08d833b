package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *countingGenerator) Generate(_ context.Context, datasetID, year string) (Result, error) {
	g.calls.Add(1)
	<-g.release
	return Result{Success: true, Filename: datasetID + "_" + year + ".zip"}, nil
}

func (g *countingGenerator) AvailableYears(_ context.Context, _ string) ([]int, error) {
	g.calls.Add(1)
	<-g.release
	return []int{2020, 2021}, nil
}

func TestSharedCollapsesIdenticalCalls(t *testing.T) {
	g := &countingGenerator{release: make(chan struct{})}
	s := NewShared(g)

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Generate(context.Background(), "educ", "2022")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return g.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(g.release)
	wg.Wait()

	assert.Equal(t, int32(1), g.calls.Load())
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, "educ_2022.zip", r.Filename)
	}
}

func TestSharedKeepsDifferentYearsApart(t *testing.T) {
	g := &countingGenerator{release: make(chan struct{})}
	close(g.release)
	s := NewShared(g)

	a, err := s.Generate(context.Background(), "educ", "2021")
	require.NoError(t, err)
	b, err := s.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.Equal(t, "educ_2021.zip", a.Filename)
	assert.Equal(t, "educ_2022.zip", b.Filename)
	assert.Equal(t, int32(2), g.calls.Load())
}

func TestSharedYearsReturnsPrivateCopy(t *testing.T) {
	g := &countingGenerator{release: make(chan struct{})}
	close(g.release)
	s := NewShared(g)

	years, err := s.AvailableYears(context.Background(), "educ")
	require.NoError(t, err)
	years[0] = 1999

	again, err := s.AvailableYears(context.Background(), "educ")
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2021}, again)
}
