package api

import (
	"time"

	"github.com/mfreeman451/laundrymon/pkg/core"
	"github.com/mfreeman451/laundrymon/pkg/db"
)

// ReportPayload is the POST body a device sends. Pointer fields make a
// missing flag distinguishable from an explicit false, and a non-boolean
// value a decode error rather than a silent zero.
type ReportPayload struct {
	MachineID string `json:"machineId"`
	Running   *bool  `json:"running"`
	Empty     *bool  `json:"empty"`
	Room      string `json:"room"`
}

// ReceivedFlags echoes the accepted flags back to the device.
type ReceivedFlags struct {
	Running bool `json:"running"`
	Empty   bool `json:"empty"`
}

type ReportResponse struct {
	Success      bool          `json:"success"`
	MachineID    string        `json:"machineId"`
	Received     ReceivedFlags `json:"received"`
	StateChanged bool          `json:"stateChanged"`
}

type MachinesResponse struct {
	Success   bool                          `json:"success"`
	Machines  map[string]core.MachineStatus `json:"machines"`
	Timestamp time.Time                     `json:"timestamp"`
}

type MachineResponse struct {
	Success   bool               `json:"success"`
	Machine   core.MachineStatus `json:"machine"`
	Timestamp time.Time          `json:"timestamp"`
}

// HistoryQueryEcho repeats the query parameters the response was built
// from, as they arrived on the wire.
type HistoryQueryEcho struct {
	MachineID string `json:"machineId,omitempty"`
	Limit     string `json:"limit,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type HistoryResponse struct {
	Success bool                       `json:"success"`
	Count   int                        `json:"count"`
	Records []db.ChangeEvent           `json:"records"`
	Stats   map[string]db.MachineStats `json:"stats"`
	Query   HistoryQueryEcho           `json:"query"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
