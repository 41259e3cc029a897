package resolver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinBoard/internal/source"
)

// fixedSource returns a canned value or error for every instrument.
type fixedSource struct {
	value float64
	err   error
}

func (f *fixedSource) FetchLatest(_ context.Context, _ string) (float64, error) {
	return f.value, f.err
}

func (f *fixedSource) Name() string { return "fixed" }

func TestResolve_Success(t *testing.T) {
	r := New(source.NewDemoSource(), time.Second)

	p, err := r.Resolve(context.Background(), "usd/twd")
	require.NoError(t, err)
	assert.Equal(t, "USDTWD=X", p.InstrumentID)
	assert.Greater(t, p.Value, 0.0)
	assert.Equal(t, "demo", p.Source)
	assert.WithinDuration(t, time.Now().UTC(), p.ResolvedAt, time.Minute)
}

func TestResolve_NoData(t *testing.T) {
	r := New(&fixedSource{err: source.ErrUnavailable}, time.Second)

	_, err := r.Resolve(context.Background(), "AAPL")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ReasonNoData, rerr.Reason)
	assert.Equal(t, "AAPL", rerr.InstrumentID)
	assert.ErrorIs(t, err, source.ErrUnavailable)
}

func TestResolve_InvalidValue(t *testing.T) {
	for name, v := range map[string]float64{
		"nan":      math.NaN(),
		"negative": -1.5,
		"inf":      math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			r := New(&fixedSource{value: v}, time.Second)

			_, err := r.Resolve(context.Background(), "AAPL")
			var rerr *Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, ReasonInvalidValue, rerr.Reason)
		})
	}
}

func TestResolve_ZeroIsValid(t *testing.T) {
	// Zero is a legal price (it is finite and non-negative); only the
	// adapter may decide zero means "no data".
	r := New(&fixedSource{value: 0}, time.Second)

	p, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Value)
}
