package model

import "time"

// Alert is a user-defined threshold rule on one instrument.
// Condition is the raw user-entered expression; it is parsed by the condition
// package against a closed grammar and is never executed as code.
type Alert struct {
	ID           int64
	UserID       int64
	Symbol       string // as entered by the user, kept for display
	InstrumentID string // normalized form used for price lookup
	Name         string
	Condition    string
	Enabled      bool
	// Armed is the suppression state: a fired alert stays disarmed (and
	// silent) until its condition evaluates false again or the user
	// re-enables it.
	Armed           bool
	LastTriggeredAt time.Time // zero if never fired
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WatchlistEntry is an instrument the user tracks. The engine only reads the
// symbol/instrument pair; entries are created and deleted by the user.
type WatchlistEntry struct {
	ID           int64
	UserID       int64
	Symbol       string
	InstrumentID string
	Label        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
