package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"github.com/mfreeman451/laundrymon/pkg/db"
	"github.com/mfreeman451/laundrymon/pkg/rooms"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, db.Service) {
	t.Helper()

	dbService, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = dbService.Close()
	})

	return NewEngine(dbService, nil, cfg), dbService
}

func eventsOfType(t *testing.T, dbService db.Service, machineID, changeType string) []db.ChangeEvent {
	t.Helper()

	events, err := dbService.GetChangeEvents(db.EventFilter{MachineID: machineID})
	require.NoError(t, err)

	var matched []db.ChangeEvent

	for _, event := range events {
		if event.ChangeType == changeType {
			matched = append(matched, event)
		}
	}

	return matched
}

func TestReportFirstSighting(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{})
	ctx := context.Background()

	stateChanged, err := engine.Report(ctx, ReportRequest{MachineID: "x1", Running: true, Empty: false})
	require.NoError(t, err)
	assert.True(t, stateChanged)

	state, err := dbService.GetMachineState("x1")
	require.NoError(t, err)
	assert.True(t, state.Running)
	assert.False(t, state.Empty)
	assert.True(t, state.Available)
	assert.WithinDuration(t, state.LastUpdate, state.CreatedAt, time.Second)

	events, err := dbService.GetChangeEvents(db.EventFilter{MachineID: "x1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, db.ChangeInitial, events[0].ChangeType)
}

func TestReportIdempotent(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{})
	ctx := context.Background()
	req := ReportRequest{MachineID: "a1-m1", Running: true, Empty: false}

	first, err := engine.Report(ctx, req)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := engine.Report(ctx, req)
	require.NoError(t, err)
	assert.False(t, second)

	events, err := dbService.GetChangeEvents(db.EventFilter{MachineID: "a1-m1"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHeartbeatAdvancesLastUpdate(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.nowFunc = func() time.Time { return now }

	req := ReportRequest{MachineID: "a1-m1", Running: false, Empty: true}

	_, err := engine.Report(ctx, req)
	require.NoError(t, err)

	now = base.Add(30 * time.Second)

	stateChanged, err := engine.Report(ctx, req)
	require.NoError(t, err)
	assert.False(t, stateChanged)

	state, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.Equal(t, now, state.LastUpdate.UTC())
	assert.Equal(t, base, state.CreatedAt.UTC())

	events, err := dbService.GetChangeEvents(db.EventFilter{MachineID: "a1-m1"})
	require.NoError(t, err)
	assert.Len(t, events, 1, "heartbeats must not append ledger rows")
}

func TestReportChangeDetection(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{})
	ctx := context.Background()

	_, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: false, Empty: true})
	require.NoError(t, err)

	stateChanged, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true, Empty: true})
	require.NoError(t, err)
	assert.True(t, stateChanged)

	updates := eventsOfType(t, dbService, "a1-m1", db.ChangeUpdate)
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Running)
	assert.True(t, updates[0].Empty)
}

func TestReportRoomMapping(t *testing.T) {
	dbService, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = dbService.Close()
	})

	mapper := rooms.NewMapper(map[string]string{"a1": "SJU-Sieg/Ryan"})
	engine := NewEngine(dbService, mapper, Config{})
	ctx := context.Background()

	_, err = engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true})
	require.NoError(t, err)

	state, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.Equal(t, "SJU-Sieg/Ryan", state.Room)

	// An explicit room wins over the mapping.
	_, err = engine.Report(ctx, ReportRequest{MachineID: "a1-m2", Running: true, Room: "Basement"})
	require.NoError(t, err)

	state, err = dbService.GetMachineState("a1-m2")
	require.NoError(t, err)
	assert.Equal(t, "Basement", state.Room)
}

func TestReportEmptyMachineID(t *testing.T) {
	engine, _ := newTestEngine(t, Config{})

	_, err := engine.Report(context.Background(), ReportRequest{MachineID: "   "})
	assert.ErrorIs(t, err, ErrEmptyMachineID)
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestStalenessFlip(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{OfflineAfter: 2 * time.Minute})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.nowFunc = func() time.Time { return now }

	_, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true})
	require.NoError(t, err)

	// Just inside the threshold: still available.
	now = base.Add(2*time.Minute - time.Second)

	statuses, err := engine.ListMachines(ctx)
	require.NoError(t, err)
	assert.True(t, statuses["a1-m1"].Available)
	assert.Empty(t, eventsOfType(t, dbService, "a1-m1", db.ChangeWentOffline))

	// Past the threshold: the listing reports offline and persists the
	// flip with exactly one ledger row.
	now = base.Add(2*time.Minute + time.Second)

	statuses, err = engine.ListMachines(ctx)
	require.NoError(t, err)
	assert.False(t, statuses["a1-m1"].Available)
	assert.Equal(t, int64((2*time.Minute + time.Second).Milliseconds()), statuses["a1-m1"].TimeSinceUpdate)

	state, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.False(t, state.Available)

	require.Len(t, eventsOfType(t, dbService, "a1-m1", db.ChangeWentOffline), 1)

	// Another listing finds nothing to reconcile.
	statuses, err = engine.ListMachines(ctx)
	require.NoError(t, err)
	assert.False(t, statuses["a1-m1"].Available)
	assert.Len(t, eventsOfType(t, dbService, "a1-m1", db.ChangeWentOffline), 1)
}

func TestReappearanceDetectedAtIngress(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{OfflineAfter: 2 * time.Minute})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.nowFunc = func() time.Time { return now }

	_, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true})
	require.NoError(t, err)

	now = base.Add(3 * time.Minute)

	_, err = engine.ListMachines(ctx)
	require.NoError(t, err)

	state, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	require.False(t, state.Available)

	// The next report flips availability right at ingress; an unchanged
	// payload is still a heartbeat, so no new ledger row appears.
	stateChanged, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true})
	require.NoError(t, err)
	assert.False(t, stateChanged)

	state, err = dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.True(t, state.Available)

	status, err := engine.GetMachine(ctx, "a1-m1")
	require.NoError(t, err)
	assert.True(t, status.Available)
}

func TestSweepCameOnline(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{OfflineAfter: 2 * time.Minute})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.nowFunc = func() time.Time { return base }

	// A row whose stored flag says offline while the report is fresh;
	// the sweep reconciles it back online.
	state := &db.MachineState{
		MachineID:  "a1-m1",
		Running:    true,
		Available:  false,
		LastUpdate: base.Add(-30 * time.Second),
		CreatedAt:  base.Add(-time.Hour),
		UpdatedAt:  base.Add(-time.Hour),
	}
	require.NoError(t, dbService.UpsertMachineState(state, nil))

	statuses, err := engine.ListMachines(ctx)
	require.NoError(t, err)
	assert.True(t, statuses["a1-m1"].Available)

	require.Len(t, eventsOfType(t, dbService, "a1-m1", db.ChangeCameOnline), 1)

	stored, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.True(t, stored.Available)
}

func TestSweepWriteGateKeepsResponsesFresh(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{OfflineAfter: 2 * time.Minute})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	engine.nowFunc = func() time.Time { return now }

	// Exhaust the gate so this listing cannot persist the flip.
	engine.sweepGate = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, engine.sweepGate.Allow())

	_, err := engine.Report(ctx, ReportRequest{MachineID: "a1-m1", Running: true})
	require.NoError(t, err)

	now = base.Add(3 * time.Minute)

	statuses, err := engine.ListMachines(ctx)
	require.NoError(t, err)
	assert.False(t, statuses["a1-m1"].Available, "response availability is computed even when the write is gated")

	state, err := dbService.GetMachineState("a1-m1")
	require.NoError(t, err)
	assert.True(t, state.Available, "gated listing leaves the stored flag for a later sweep")
	assert.Empty(t, eventsOfType(t, dbService, "a1-m1", db.ChangeWentOffline))
}

func TestConcurrentFirstSighting(t *testing.T) {
	engine, dbService := newTestEngine(t, Config{})
	ctx := context.Background()

	const workers = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			stateChanged, err := engine.Report(ctx, ReportRequest{MachineID: "x1", Running: true, Empty: false})
			assert.NoError(t, err)

			if stateChanged {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, changed, "exactly one report observes the first sighting")

	events, err := dbService.GetChangeEvents(db.EventFilter{MachineID: "x1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, db.ChangeInitial, events[0].ChangeType)

	states, err := dbService.ListMachineStates()
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestReportStoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().GetMachineState("a1-m1").Return(nil, errors.New("disk on fire"))

	engine := NewEngine(mockDB, nil, Config{})

	_, err := engine.Report(context.Background(), ReportRequest{MachineID: "a1-m1", Running: true})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestHistoryDefaultLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().
		GetChangeEvents(db.EventFilter{MachineID: "a1-m1", Limit: defaultHistoryLimit}).
		Return(nil, nil)
	mockDB.EXPECT().
		GetMachineStats("a1-m1").
		Return(map[string]db.MachineStats{}, nil)

	engine := NewEngine(mockDB, nil, Config{})

	_, _, err := engine.History(context.Background(), HistoryQuery{MachineID: "a1-m1"})
	assert.NoError(t, err)
}
