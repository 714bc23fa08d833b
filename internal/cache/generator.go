package cache

import (
	"context"

	"github.com/orsg/prisme/internal/engine"
)

// Generator decorates a ReportGenerator with a years cache. Generate passes
// straight through.
type Generator struct {
	engine.ReportGenerator
	cache   YearsCache
	version func() uint64
}

// NewGenerator caches next's AvailableYears under the version reported by
// version, normally the current catalog version.
func NewGenerator(next engine.ReportGenerator, c YearsCache, version func() uint64) *Generator {
	return &Generator{ReportGenerator: next, cache: c, version: version}
}

// AvailableYears serves from cache when possible. Failures are not cached.
func (g *Generator) AvailableYears(ctx context.Context, datasetID string) ([]int, error) {
	v := g.version()
	if years, ok := g.cache.Get(ctx, v, datasetID); ok {
		return years, nil
	}
	years, err := g.ReportGenerator.AvailableYears(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	g.cache.Set(ctx, v, datasetID, years)
	return years, nil
}
