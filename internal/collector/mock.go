package collector

import (
	"context"
	"fmt"
	"time"

	"CrashSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without an entry in Series get a flat series at Price, unless listed in Fail.
// Volumes, when set for a symbol, must be as long as that symbol's closes.
type MockFetcher struct {
	Price   float64
	Series  map[string][]float64
	Volumes map[string][]float64
	Fail    map[string]error
	Calls   int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCloses(_ context.Context, symbol string, days int) (*model.PriceSeries, error) {
	m.Calls++
	if err, ok := m.Fail[symbol]; ok {
		return nil, fmt.Errorf("mock %s: %w", symbol, err)
	}
	closes, ok := m.Series[symbol]
	if !ok {
		closes = make([]float64, days)
		for i := range closes {
			closes[i] = m.Price
		}
	}
	bars := generateMockBars(closes, m.Volumes[symbol])
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return &model.PriceSeries{Symbol: symbol, Bars: bars, FetchedAt: time.Now()}, nil
}

func generateMockBars(closes, volumes []float64) []model.Bar {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Time: now.AddDate(0, 0, -(len(closes) - i)), Close: c}
		if i < len(volumes) {
			bars[i].Volume = volumes[i]
		}
	}
	return bars
}
