package resolver

import (
	"context"
	"fmt"
	"math"
	"time"

	"FinBoard/internal/model"
	"FinBoard/internal/source"
	"FinBoard/internal/symbol"
)

// Reason classifies a resolution failure.
type Reason string

const (
	// ReasonNoData means the source could not produce any price.
	ReasonNoData Reason = "no_data"
	// ReasonInvalidValue means the source returned a non-finite or negative
	// value that was rejected rather than passed through.
	ReasonInvalidValue Reason = "invalid_value"
)

// Error is a typed resolution failure.
type Error struct {
	InstrumentID string
	Reason       Reason
	Cause        error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.InstrumentID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("resolve %s: %s", e.InstrumentID, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Resolver turns a raw symbol into an authoritative price: normalize, fetch
// from the source, validate, stamp. No retries happen here; retry policy
// belongs to the caller.
type Resolver struct {
	src     source.Source
	timeout time.Duration
}

// New creates a Resolver. timeout bounds each individual fetch so one slow
// provider call cannot stall a whole evaluation cycle.
func New(src source.Source, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Resolver{src: src, timeout: timeout}
}

// Resolve normalizes a raw symbol and resolves its price.
func (r *Resolver) Resolve(ctx context.Context, rawSymbol string) (model.ResolvedPrice, error) {
	return r.ResolveInstrument(ctx, symbol.Normalize(rawSymbol))
}

// ResolveInstrument resolves the price of an already-canonical instrument id.
func (r *Resolver) ResolveInstrument(ctx context.Context, instrumentID string) (model.ResolvedPrice, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.src.FetchLatest(ctx, instrumentID)
	if err != nil {
		return model.ResolvedPrice{}, &Error{InstrumentID: instrumentID, Reason: ReasonNoData, Cause: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return model.ResolvedPrice{}, &Error{InstrumentID: instrumentID, Reason: ReasonInvalidValue}
	}
	return model.ResolvedPrice{
		InstrumentID: instrumentID,
		Value:        v,
		ResolvedAt:   time.Now().UTC(),
		Source:       r.src.Name(),
	}, nil
}
