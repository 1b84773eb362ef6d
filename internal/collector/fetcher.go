package collector

import (
	"context"

	"CrashSentinel/internal/model"
)

// Fetcher defines the interface for fetching daily closes.
type Fetcher interface {
	FetchCloses(ctx context.Context, symbol string, days int) (*model.PriceSeries, error)
	Name() string
}
