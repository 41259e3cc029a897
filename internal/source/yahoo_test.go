package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestYahoo(handler http.Handler) (*YahooSource, *httptest.Server) {
	srv := httptest.NewServer(handler)
	y := NewYahooSource("")
	y.baseURL = srv.URL
	return y, srv
}

func chartJSON(metaPrice float64, closes string) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"regularMarketPrice":%g},
		"timestamp":[1,2,3],
		"indicators":{"quote":[{"close":%s}]}}],"error":null}}`, metaPrice, closes)
}

func TestYahooFetchLatest_FastPath(t *testing.T) {
	y, srv := newTestYahoo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(33.5123456789, "[33.1,33.2,33.3]"))
	}))
	defer srv.Close()

	p, err := y.FetchLatest(context.Background(), "USDTWD=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 33.512346 {
		t.Errorf("expected price rounded to 6 digits (33.512346), got %v", p)
	}
}

func TestYahooFetchLatest_FallbackToClose(t *testing.T) {
	y, srv := newTestYahoo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") == "1d" {
			// No usable quote in the metadata.
			fmt.Fprint(w, chartJSON(0, "[]"))
			return
		}
		// Last bar is null (holiday); the previous close should win.
		fmt.Fprint(w, chartJSON(0, "[801.0,805.5,null]"))
	}))
	defer srv.Close()

	p, err := y.FetchLatest(context.Background(), "2330.TW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 805.5 {
		t.Errorf("expected fallback close 805.5, got %v", p)
	}
}

func TestYahooFetchLatest_Unavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		},
		"api error": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"no data"}}}`)
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart":`)
		},
		"all null closes": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, chartJSON(0, "[null,null]"))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			y, srv := newTestYahoo(handler)
			defer srv.Close()

			_, err := y.FetchLatest(context.Background(), "NOPE")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestDemoSource(t *testing.T) {
	d := NewDemoSource()
	p, err := d.FetchLatest(context.Background(), "USDTWD=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p <= 0 {
		t.Errorf("expected positive demo price, got %v", p)
	}
	if _, err := d.FetchLatest(context.Background(), "UNKNOWN"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unknown instrument, got %v", err)
	}
}
