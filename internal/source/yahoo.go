package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// YahooSource fetches prices from the Yahoo Finance chart API. The fast path
// reads the regular-market price from the chart metadata; when that is
// missing or unusable it falls back to the most recent trading-session close.
type YahooSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewYahooSource creates a live source with optional proxy support.
func NewYahooSource(proxyURL string) *YahooSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooSource{
		baseURL: "https://query1.finance.yahoo.com",
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		// Yahoo throttles anonymous clients aggressively; keep a modest pace.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

func (s *YahooSource) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// FetchLatest returns the latest price for an instrument, rounded to 6
// fractional digits. Every failure mode, network, decode, provider error,
// NaN or non-finite value, surfaces as ErrUnavailable.
func (s *YahooSource) FetchLatest(ctx context.Context, instrumentID string) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("yahoo %s: %w", instrumentID, ErrUnavailable)
	}

	// Fast path: last quote from the chart metadata.
	chart, err := s.fetchChart(ctx, instrumentID, "1d", "1d")
	if err == nil {
		if p, ok := usablePrice(chart.Chart.Result[0].Meta.RegularMarketPrice); ok {
			return p, nil
		}
	} else {
		log.Printf("[WARN] yahoo quote %s: %v", instrumentID, err)
	}

	// Fallback: most recent session close from daily bars.
	chart, err = s.fetchChart(ctx, instrumentID, "1d", "5d")
	if err != nil {
		log.Printf("[WARN] yahoo daily close %s: %v", instrumentID, err)
		return 0, fmt.Errorf("yahoo %s: %w", instrumentID, ErrUnavailable)
	}
	closes := chart.Chart.Result[0].Indicators.Quote
	if len(closes) == 0 {
		return 0, fmt.Errorf("yahoo %s: %w", instrumentID, ErrUnavailable)
	}
	for i := len(closes[0].Close) - 1; i >= 0; i-- {
		if closes[0].Close[i] == nil {
			continue // null bars on holidays etc.
		}
		if p, ok := usablePrice(toFloat(closes[0].Close[i])); ok {
			return p, nil
		}
	}
	return 0, fmt.Errorf("yahoo %s: %w", instrumentID, ErrUnavailable)
}

// usablePrice validates and rounds a raw provider value.
func usablePrice(v float64) (float64, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return decimal.NewFromFloat(v).Round(6).InexactFloat64(), true
}

func (s *YahooSource) fetchChart(ctx context.Context, instrumentID, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		s.baseURL, url.PathEscape(instrumentID), interval, rng)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}
	return &chart, nil
}
