package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinBoard/internal/condition"
	"FinBoard/internal/model"
	"FinBoard/internal/resolver"
	"FinBoard/internal/symbol"
)

// Outcome is the per-alert result of one evaluation cycle.
type Outcome string

const (
	OutcomeTriggered    Outcome = "triggered"
	OutcomeNotTriggered Outcome = "not_triggered"
	// OutcomeSuppressed: condition is true but the alert already fired and
	// has not been re-armed.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeSkippedNoPrice: the alert's instrument could not be resolved
	// this cycle; no price is ever fabricated.
	OutcomeSkippedNoPrice Outcome = "skipped_no_price"
	// OutcomeSkippedBadCondition: the condition expression does not parse;
	// a configuration error on that alert, not fatal to the cycle.
	OutcomeSkippedBadCondition Outcome = "skipped_bad_condition"
)

// Result pairs an alert with its cycle outcome.
type Result struct {
	AlertID int64
	Outcome Outcome
	Price   float64 // set when a price was resolved
	Err     error   // set for skipped outcomes
}

// TriggerStore is the slice of persistence the cycle needs: durable trigger
// state per alert plus the trigger event log. Writes are per-alert and
// independent; no cross-alert transaction.
type TriggerStore interface {
	MarkTriggered(id int64, price float64, at time.Time) error
	Rearm(id int64) error
	RecordTrigger(ev model.TriggerEvent) error
}

// Engine runs evaluation cycles over enabled alerts.
type Engine struct {
	resolver    *resolver.Resolver
	store       TriggerStore
	maxParallel int
}

// New creates an Engine. maxParallel bounds concurrent price resolutions
// within one cycle.
func New(res *resolver.Resolver, store TriggerStore, maxParallel int) *Engine {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Engine{resolver: res, store: store, maxParallel: maxParallel}
}

// RunCycle evaluates all given enabled alerts once. Each distinct instrument
// is resolved at most once per cycle and the result shared across every alert
// referencing it; a resolution failure skips only that instrument's alerts.
// At most one TriggerEvent is emitted per alert per cycle, and firing is
// recorded durably before the event is returned. If ctx is canceled
// mid-cycle, remaining alerts are left untouched.
func (e *Engine) RunCycle(ctx context.Context, alerts []model.Alert) ([]model.TriggerEvent, []Result) {
	byInstrument := make(map[string][]model.Alert)
	for _, a := range alerts {
		if !a.Enabled {
			continue
		}
		id := a.InstrumentID
		if id == "" {
			id = symbol.Normalize(a.Symbol)
		}
		byInstrument[id] = append(byInstrument[id], a)
	}
	if len(byInstrument) == 0 {
		return nil, nil
	}

	// Cycle-scoped resolution cache: one fetch per distinct instrument.
	// The maps are filled under the mutex; the fetches themselves run
	// without any lock held.
	prices := make(map[string]model.ResolvedPrice)
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for id := range byInstrument {
		g.Go(func() error {
			p, err := e.resolver.ResolveInstrument(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[id] = err
			} else {
				prices[id] = p
			}
			// A per-instrument failure must not cancel the rest of the
			// cycle, so the group never sees an error.
			return nil
		})
	}
	_ = g.Wait()

	var events []model.TriggerEvent
	var results []Result
	for id, group := range byInstrument {
		if err, failed := failures[id]; failed {
			log.Printf("[WARN] cycle: no price for %s, skipping %d alert(s): %v", id, len(group), err)
			for _, a := range group {
				results = append(results, Result{AlertID: a.ID, Outcome: OutcomeSkippedNoPrice, Err: err})
			}
			continue
		}
		price := prices[id]

		for _, a := range group {
			if ctx.Err() != nil {
				// Canceled: partially computed transitions for the
				// remaining alerts are not committed.
				return events, results
			}
			results = append(results, e.evaluate(a, price, &events))
		}
	}
	return events, results
}

func (e *Engine) evaluate(a model.Alert, price model.ResolvedPrice, events *[]model.TriggerEvent) Result {
	cond, err := condition.Parse(a.Condition)
	if err != nil {
		log.Printf("[WARN] cycle: alert %d has bad condition: %v", a.ID, err)
		return Result{AlertID: a.ID, Outcome: OutcomeSkippedBadCondition, Err: err}
	}

	if !cond.Eval(price.Value) {
		if !a.Armed {
			// Condition fell back below the threshold: re-arm so the next
			// crossing fires again.
			if err := e.store.Rearm(a.ID); err != nil {
				log.Printf("[ERROR] cycle: rearm alert %d: %v", a.ID, err)
			}
		}
		return Result{AlertID: a.ID, Outcome: OutcomeNotTriggered, Price: price.Value}
	}

	if !a.Armed {
		return Result{AlertID: a.ID, Outcome: OutcomeSuppressed, Price: price.Value}
	}

	now := time.Now().UTC()
	if err := e.store.MarkTriggered(a.ID, price.Value, now); err != nil {
		// Without the durable marker the next cycle would fire again, so
		// hold the event back.
		log.Printf("[ERROR] cycle: mark alert %d triggered: %v", a.ID, err)
		return Result{AlertID: a.ID, Outcome: OutcomeNotTriggered, Price: price.Value, Err: err}
	}

	ev := model.TriggerEvent{
		ID:             uuid.NewString(),
		AlertID:        a.ID,
		PriceAtTrigger: price.Value,
		EvaluatedAt:    now,
	}
	if err := e.store.RecordTrigger(ev); err != nil {
		log.Printf("[ERROR] cycle: record trigger for alert %d: %v", a.ID, err)
	}
	*events = append(*events, ev)
	return Result{AlertID: a.ID, Outcome: OutcomeTriggered, Price: price.Value}
}
