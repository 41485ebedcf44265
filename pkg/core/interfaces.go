// Package core pkg/core/interfaces.go

package core

import (
	"context"

	"github.com/mfreeman451/laundrymon/pkg/db"
)

// Service represents the presence engine operations exposed to the API
// layer. All mutation of machine state and the ledger goes through here.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Report(ctx context.Context, req ReportRequest) (bool, error)
	ListMachines(ctx context.Context) (map[string]MachineStatus, error)
	GetMachine(ctx context.Context, machineID string) (*MachineStatus, error)
	History(ctx context.Context, query HistoryQuery) ([]db.ChangeEvent, map[string]db.MachineStats, error)
}
