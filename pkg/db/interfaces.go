// Package db pkg/db/interfaces.go
package db

import (
	"time"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/mfreeman451/laundrymon/pkg/db Service

// MachineState is the current snapshot of one machine, one row per
// machine id.
type MachineState struct {
	MachineID  string    `json:"machineId"`
	Running    bool      `json:"running"`
	Empty      bool      `json:"empty"`
	Available  bool      `json:"available"`
	Room       string    `json:"room,omitempty"`
	LastUpdate time.Time `json:"lastUpdate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Change types recorded in the machine_history ledger.
const (
	ChangeInitial     = "initial"
	ChangeUpdate      = "update"
	ChangeCameOnline  = "came_online"
	ChangeWentOffline = "went_offline"
)

// ChangeEvent is one row of the append-only state change ledger.
type ChangeEvent struct {
	ID         int64     `json:"-"`
	MachineID  string    `json:"machineId"`
	Running    bool      `json:"running"`
	Empty      bool      `json:"empty"`
	Available  bool      `json:"available"`
	Timestamp  time.Time `json:"timestamp"`
	ChangeType string    `json:"changeType"`
}

// EventFilter narrows a ledger query. Zero values leave the dimension
// unconstrained; Limit <= 0 means no limit.
type EventFilter struct {
	MachineID string
	Start     time.Time
	End       time.Time
	Limit     int
}

// MachineStats summarizes a machine's ledger: row counts per flag and the
// number of distinct days with at least one entry.
type MachineStats struct {
	TotalChanges        int `json:"totalChanges"`
	TotalRunningChanges int `json:"totalRunningChanges"`
	TotalEmptyChanges   int `json:"totalEmptyChanges"`
	DaysActive          int `json:"daysActive"`
}

// Service represents all database operations.
type Service interface {
	Close() error

	// Machine state operations.

	GetMachineState(machineID string) (*MachineState, error)
	ListMachineStates() ([]MachineState, error)
	UpsertMachineState(state *MachineState, event *ChangeEvent) error
	UpdateAvailability(machineID string, available bool, seenLastUpdate, now time.Time, event *ChangeEvent) error

	// Ledger operations.

	GetChangeEvents(filter EventFilter) ([]ChangeEvent, error)
	GetMachineStats(machineID string) (map[string]MachineStats, error)

	// Maintenance operations.

	CleanOldHistory(retentionPeriod time.Duration) error
}
