package store

import (
	"errors"
	"time"

	"FinBoard/internal/model"
)

// ErrNotFound is returned when the target row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSymbolRequired is returned when a write arrives with an empty symbol.
// Empty symbols are rejected here, before normalization.
var ErrSymbolRequired = errors.New("symbol required")

// AlertPatch carries the user-editable alert fields; nil means unchanged.
// Setting Enabled to true also re-arms the alert.
type AlertPatch struct {
	Name      *string
	Condition *string
	Enabled   *bool
}

// Store persists watchlist entries, alerts and trigger history. The engine
// only ever mutates the trigger state of an alert (MarkTriggered / Rearm);
// everything else is user-driven.
type Store interface {
	Watchlist() ([]model.WatchlistEntry, error)
	AddWatchlist(symbol, label string) (model.WatchlistEntry, error)
	DeleteWatchlist(id int64) error

	Alerts() ([]model.Alert, error)
	EnabledAlerts() ([]model.Alert, error)
	CreateAlert(symbol, name, cond string, enabled bool) (model.Alert, error)
	PatchAlert(id int64, patch AlertPatch) (model.Alert, error)

	MarkTriggered(id int64, price float64, at time.Time) error
	Rearm(id int64) error
	RecordTrigger(ev model.TriggerEvent) error
	RecentTriggers(limit int) ([]model.TriggerEvent, error)

	Close() error
}
