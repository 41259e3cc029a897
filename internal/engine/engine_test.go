package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinBoard/internal/model"
	"FinBoard/internal/resolver"
	"FinBoard/internal/source"
	"FinBoard/internal/store"
)

// countingSource counts adapter calls per instrument and serves a fixed
// price table; instruments outside the table are unavailable.
type countingSource struct {
	mu     sync.Mutex
	calls  map[string]int
	prices map[string]float64
}

func newCountingSource(prices map[string]float64) *countingSource {
	return &countingSource{calls: make(map[string]int), prices: prices}
}

func (c *countingSource) FetchLatest(_ context.Context, instrumentID string) (float64, error) {
	c.mu.Lock()
	c.calls[instrumentID]++
	c.mu.Unlock()
	p, ok := c.prices[instrumentID]
	if !ok {
		return 0, source.ErrUnavailable
	}
	return p, nil
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) callCount(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func newTestEngine(t *testing.T, prices map[string]float64) (*Engine, *countingSource, *store.MemoryStore) {
	t.Helper()
	src := newCountingSource(prices)
	st := store.NewMemoryStore()
	eng := New(resolver.New(src, time.Second), st, 4)
	return eng, src, st
}

func mustCreateAlert(t *testing.T, st *store.MemoryStore, sym, name, cond string) model.Alert {
	t.Helper()
	a, err := st.CreateAlert(sym, name, cond, true)
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return a
}

func outcomeOf(results []Result, alertID int64) Outcome {
	for _, r := range results {
		if r.AlertID == alertID {
			return r.Outcome
		}
	}
	return ""
}

func TestRunCycle_DeduplicatesResolution(t *testing.T) {
	eng, src, st := newTestEngine(t, map[string]float64{"USDTWD=X": 33.5})

	// Three alerts, two raw spellings, one instrument.
	mustCreateAlert(t, st, "USD/TWD", "a", "price >= 33.0")
	mustCreateAlert(t, st, "usd/twd", "b", "price >= 34.0")
	mustCreateAlert(t, st, "USDTWD=X", "c", "price <= 40")

	alerts, _ := st.EnabledAlerts()
	events, results := eng.RunCycle(context.Background(), alerts)

	if got := src.callCount("USDTWD=X"); got != 1 {
		t.Errorf("expected exactly 1 adapter call for shared instrument, got %d", got)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// a (33.5 >= 33.0) and c (33.5 <= 40) fire; b does not.
	if len(events) != 2 {
		t.Errorf("expected 2 trigger events, got %d", len(events))
	}
}

func TestRunCycle_PartialFailureIsolation(t *testing.T) {
	eng, _, st := newTestEngine(t, map[string]float64{"AAPL": 230})

	healthy := mustCreateAlert(t, st, "AAPL", "healthy", "price >= 200")
	dead := mustCreateAlert(t, st, "UNREACHABLE", "dead", "price >= 1")

	alerts, _ := st.EnabledAlerts()
	events, results := eng.RunCycle(context.Background(), alerts)

	if len(events) != 1 || events[0].AlertID != healthy.ID {
		t.Fatalf("expected one event for the healthy alert, got %v", events)
	}
	if got := outcomeOf(results, dead.ID); got != OutcomeSkippedNoPrice {
		t.Errorf("expected skipped_no_price for unreachable instrument, got %q", got)
	}
}

func TestRunCycle_BadConditionIsPerAlert(t *testing.T) {
	eng, _, st := newTestEngine(t, map[string]float64{"AAPL": 230})

	good := mustCreateAlert(t, st, "AAPL", "good", "price >= 200")
	bad := mustCreateAlert(t, st, "AAPL", "bad", "DROP TABLE alerts")

	alerts, _ := st.EnabledAlerts()
	events, results := eng.RunCycle(context.Background(), alerts)

	if got := outcomeOf(results, bad.ID); got != OutcomeSkippedBadCondition {
		t.Errorf("expected skipped_bad_condition, got %q", got)
	}
	if got := outcomeOf(results, good.ID); got != OutcomeTriggered {
		t.Errorf("expected triggered for the valid alert, got %q", got)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestRunCycle_SuppressionAndRearm(t *testing.T) {
	src := newCountingSource(map[string]float64{"USDTWD=X": 33.5})
	st := store.NewMemoryStore()
	eng := New(resolver.New(src, time.Second), st, 4)

	a := mustCreateAlert(t, st, "USD/TWD", "breakout", "price >= 33.0")

	// First cycle fires once and records durable state.
	alerts, _ := st.EnabledAlerts()
	events, _ := eng.RunCycle(context.Background(), alerts)
	if len(events) != 1 {
		t.Fatalf("first cycle: expected 1 event, got %d", len(events))
	}
	stored, _ := st.PatchAlert(a.ID, store.AlertPatch{})
	if stored.Armed || stored.LastTriggeredAt.IsZero() {
		t.Fatalf("expected alert disarmed with last_triggered set, got armed=%v ts=%v",
			stored.Armed, stored.LastTriggeredAt)
	}

	// Second cycle, condition still true: suppressed, no new event.
	alerts, _ = st.EnabledAlerts()
	events, results := eng.RunCycle(context.Background(), alerts)
	if len(events) != 0 {
		t.Fatalf("second cycle: expected no events, got %d", len(events))
	}
	if got := outcomeOf(results, a.ID); got != OutcomeSuppressed {
		t.Errorf("expected suppressed, got %q", got)
	}

	// Price drops below the threshold: not triggered, re-armed.
	src.prices["USDTWD=X"] = 32.0
	alerts, _ = st.EnabledAlerts()
	_, results = eng.RunCycle(context.Background(), alerts)
	if got := outcomeOf(results, a.ID); got != OutcomeNotTriggered {
		t.Errorf("expected not_triggered after drop, got %q", got)
	}
	stored, _ = st.PatchAlert(a.ID, store.AlertPatch{})
	if !stored.Armed {
		t.Error("expected alert re-armed after condition went false")
	}

	// Crossing again fires again.
	src.prices["USDTWD=X"] = 33.6
	alerts, _ = st.EnabledAlerts()
	events, _ = eng.RunCycle(context.Background(), alerts)
	if len(events) != 1 {
		t.Errorf("expected re-trigger after re-arm, got %d events", len(events))
	}
}

func TestRunCycle_TriggerHistoryRecorded(t *testing.T) {
	eng, _, st := newTestEngine(t, map[string]float64{"USDTWD=X": 33.5})
	a := mustCreateAlert(t, st, "USD/TWD", "breakout", "price >= 33.0")

	alerts, _ := st.EnabledAlerts()
	events, _ := eng.RunCycle(context.Background(), alerts)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Error("expected event id to be set")
	}
	if events[0].PriceAtTrigger != 33.5 {
		t.Errorf("expected price 33.5 at trigger, got %v", events[0].PriceAtTrigger)
	}

	history, err := st.RecentTriggers(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].AlertID != a.ID {
		t.Fatalf("expected trigger history for alert %d, got %v", a.ID, history)
	}
}

func TestRunCycle_CanceledContext(t *testing.T) {
	eng, _, st := newTestEngine(t, map[string]float64{"AAPL": 230})
	mustCreateAlert(t, st, "AAPL", "a", "price >= 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alerts, _ := st.EnabledAlerts()
	events, _ := eng.RunCycle(ctx, alerts)
	if len(events) != 0 {
		t.Errorf("expected no committed events from a canceled cycle, got %d", len(events))
	}
}
