package source

import (
	"context"
	"fmt"
)

// DemoSource returns fixed prices for a closed set of instruments. Used for
// development, tests and environments without network access to a provider.
type DemoSource struct {
	Prices map[string]float64
}

// NewDemoSource creates a demo source covering the seeded demo instruments.
func NewDemoSource() *DemoSource {
	return &DemoSource{
		Prices: map[string]float64{
			"BTC-USD":  67425.128906,
			"ETH-USD":  3211.5,
			"2330.TW":  785.0,
			"USDTWD=X": 32.951,
			"AAPL":     228.87,
			"^GSPC":    5634.61,
		},
	}
}

func (d *DemoSource) Name() string { return "demo" }

// FetchLatest returns the fixed price, or ErrUnavailable for any instrument
// outside the demo set.
func (d *DemoSource) FetchLatest(_ context.Context, instrumentID string) (float64, error) {
	p, ok := d.Prices[instrumentID]
	if !ok {
		return 0, fmt.Errorf("demo %s: %w", instrumentID, ErrUnavailable)
	}
	return p, nil
}
