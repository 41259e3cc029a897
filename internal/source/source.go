package source

import (
	"context"
	"errors"
)

// ErrUnavailable means the source could not produce any price for the
// instrument: unknown symbol, empty provider response, network failure or
// malformed data. Callers must treat it as "no data", never as a zero price.
var ErrUnavailable = errors.New("price unavailable")

// Source fetches the latest price for a canonical instrument identifier.
// The live implementation performs outbound network I/O, so every call must
// honor ctx, may be slow and may fail; callers must not hold locks across it.
type Source interface {
	FetchLatest(ctx context.Context, instrumentID string) (float64, error)
	Name() string
}
