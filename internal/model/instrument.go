package model

import "time"

// ResolvedPrice is the authoritative price for one instrument at one moment.
// Value is always finite and non-negative; a failed resolution never produces
// a ResolvedPrice, it produces a typed error instead.
type ResolvedPrice struct {
	InstrumentID string
	Value        float64
	ResolvedAt   time.Time
	Source       string
}

// TriggerEvent is emitted when an armed alert's condition first becomes true.
type TriggerEvent struct {
	ID             string
	AlertID        int64
	PriceAtTrigger float64
	EvaluatedAt    time.Time
}
