package core

import (
	"time"
)

// Config holds the engine's timing knobs.
type Config struct {
	// OfflineAfter is how long a machine may stay silent before listings
	// report it offline.
	OfflineAfter time.Duration

	// HistoryRetention bounds the age of ledger rows; zero keeps the
	// ledger forever.
	HistoryRetention time.Duration
}

// ReportRequest is a validated device report entering the store.
type ReportRequest struct {
	MachineID string
	Running   bool
	Empty     bool
	Room      string
}

// MachineStatus is the listing view of one machine. Availability is
// always computed from report recency at read time.
type MachineStatus struct {
	Running         bool      `json:"running"`
	Empty           bool      `json:"empty"`
	Available       bool      `json:"available"`
	Room            *string   `json:"room"`
	LastUpdate      time.Time `json:"lastUpdate"`
	TimeSinceUpdate int64     `json:"timeSinceUpdate"` // milliseconds
}

// HistoryQuery narrows a ledger read. Zero values leave a dimension
// unconstrained; Limit <= 0 applies the default.
type HistoryQuery struct {
	MachineID string
	Limit     int
	Start     time.Time
	End       time.Time
}
