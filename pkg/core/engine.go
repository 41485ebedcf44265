/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core pkg/core/engine.go implements the presence and state-change
// tracking engine: idempotent report ingress, the availability sweep, and
// the ledger queries.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfreeman451/laundrymon/pkg/db"
	"github.com/mfreeman451/laundrymon/pkg/rooms"
)

const (
	defaultOfflineAfter = 2 * time.Minute
	defaultHistoryLimit = 50

	// cleanupInterval is how often the retention purge runs.
	cleanupInterval = time.Hour

	// sweepWriteInterval bounds how often a listing may persist
	// availability flips; responses always carry fresh availability
	// regardless.
	sweepWriteInterval = time.Second
)

// Engine owns all writes to the machine table and the change ledger.
type Engine struct {
	db           db.Service
	rooms        *rooms.Mapper
	offlineAfter time.Duration
	retention    time.Duration
	sweepGate    *rate.Limiter
	nowFunc      func() time.Time
	mu           sync.Mutex
	machineLocks map[string]*sync.Mutex
	ShutdownChan chan struct{}
}

// NewEngine creates the presence engine on top of a database service and
// an optional room mapper.
func NewEngine(database db.Service, mapper *rooms.Mapper, cfg Config) *Engine {
	offlineAfter := cfg.OfflineAfter
	if offlineAfter <= 0 {
		offlineAfter = defaultOfflineAfter
	}

	return &Engine{
		db:           database,
		rooms:        mapper,
		offlineAfter: offlineAfter,
		retention:    cfg.HistoryRetention,
		sweepGate:    rate.NewLimiter(rate.Every(sweepWriteInterval), 1),
		nowFunc:      time.Now,
		machineLocks: make(map[string]*sync.Mutex),
		ShutdownChan: make(chan struct{}),
	}
}

// Start runs the retention purge loop. It returns immediately when no
// retention period is configured.
func (e *Engine) Start(ctx context.Context) error {
	if e.retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.ShutdownChan:
			return nil
		case <-ticker.C:
			if err := e.db.CleanOldHistory(e.retention); err != nil {
				log.Printf("Error cleaning old history: %v", err)
			}
		}
	}
}

// Stop shuts the engine down and closes the database.
func (e *Engine) Stop(_ context.Context) error {
	close(e.ShutdownChan)

	return e.db.Close()
}

// lockFor returns the mutex serializing writes for one machine. Locks are
// never removed; the fleet is small and ids are stable.
func (e *Engine) lockFor(machineID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.machineLocks[machineID]
	if !ok {
		l = &sync.Mutex{}
		e.machineLocks[machineID] = l
	}

	return l
}

// Report applies one device report: upserts the current state, marks the
// machine available, and appends a ledger row when the operational flags
// changed or the machine is new. It returns whether the reported state
// differs from the prior one. Repeating an identical report is safe; a
// heartbeat advances lastUpdate without touching the ledger.
func (e *Engine) Report(_ context.Context, req ReportRequest) (bool, error) {
	machineID := strings.TrimSpace(req.MachineID)
	if machineID == "" {
		return false, ErrEmptyMachineID
	}

	// The read-modify-write-append below must not interleave for the
	// same machine, or racing reports double-insert 'initial' rows.
	machineLock := e.lockFor(machineID)
	machineLock.Lock()
	defer machineLock.Unlock()

	prior, err := e.db.GetMachineState(machineID)

	isNew := errors.Is(err, db.ErrNotFound)
	if err != nil && !isNew {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	stateChanged := isNew || prior.Running != req.Running || prior.Empty != req.Empty

	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = e.rooms.Lookup(machineID)
	}

	now := e.nowFunc()
	state := &db.MachineState{
		MachineID:  machineID,
		Running:    req.Running,
		Empty:      req.Empty,
		Available:  true,
		Room:       room,
		LastUpdate: now,
		CreatedAt:  now, // only written on first insert
		UpdatedAt:  now,
	}

	var event *db.ChangeEvent

	if stateChanged {
		changeType := db.ChangeUpdate
		if isNew {
			changeType = db.ChangeInitial
		}

		event = &db.ChangeEvent{
			MachineID:  machineID,
			Running:    req.Running,
			Empty:      req.Empty,
			Available:  true,
			Timestamp:  now,
			ChangeType: changeType,
		}

		log.Printf("[%s] state change: running=%v empty=%v (%s)", machineID, req.Running, req.Empty, changeType)
	}

	if err := e.db.UpsertMachineState(state, event); err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return stateChanged, nil
}

// ListMachines returns every known machine with availability computed
// from report recency, and reconciles stored availability that drifted
// from it. Machines are never dropped from the listing, however long
// they have been silent.
func (e *Engine) ListMachines(_ context.Context) (map[string]MachineStatus, error) {
	states, err := e.db.ListMachineStates()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := e.nowFunc()
	statuses := make(map[string]MachineStatus, len(states))

	var stale []db.MachineState

	for _, state := range states {
		sinceUpdate := now.Sub(state.LastUpdate)
		isAvailable := sinceUpdate < e.offlineAfter

		statuses[state.MachineID] = MachineStatus{
			Running:         state.Running,
			Empty:           state.Empty,
			Available:       isAvailable,
			Room:            roomLabel(state.Room),
			LastUpdate:      state.LastUpdate,
			TimeSinceUpdate: sinceUpdate.Milliseconds(),
		}

		if isAvailable != state.Available {
			stale = append(stale, state)
		}
	}

	if len(stale) > 0 && e.sweepGate.Allow() {
		e.reconcileAvailability(stale, now)
	}

	return statuses, nil
}

// reconcileAvailability persists availability flips detected during a
// listing and appends the matching came_online/went_offline ledger rows.
// The store skips any machine that reported again after we read it.
func (e *Engine) reconcileAvailability(stale []db.MachineState, now time.Time) {
	for _, state := range stale {
		isAvailable := !state.Available

		changeType := db.ChangeWentOffline
		if isAvailable {
			changeType = db.ChangeCameOnline
		}

		event := &db.ChangeEvent{
			MachineID:  state.MachineID,
			Running:    state.Running,
			Empty:      state.Empty,
			Available:  isAvailable,
			Timestamp:  now,
			ChangeType: changeType,
		}

		if err := e.db.UpdateAvailability(state.MachineID, isAvailable, state.LastUpdate, now, event); err != nil {
			log.Printf("Error reconciling availability for %s: %v", state.MachineID, err)
			continue
		}

		log.Printf("[%s] %s", state.MachineID, changeType)
	}
}

// GetMachine returns one machine's status with availability applied on
// the fly; the stored flag is left for the next listing to reconcile.
func (e *Engine) GetMachine(_ context.Context, machineID string) (*MachineStatus, error) {
	state, err := e.db.GetMachineState(machineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := e.nowFunc()
	sinceUpdate := now.Sub(state.LastUpdate)

	return &MachineStatus{
		Running:         state.Running,
		Empty:           state.Empty,
		Available:       sinceUpdate < e.offlineAfter,
		Room:            roomLabel(state.Room),
		LastUpdate:      state.LastUpdate,
		TimeSinceUpdate: sinceUpdate.Milliseconds(),
	}, nil
}

// History returns ledger rows newest-first plus per-machine aggregates.
func (e *Engine) History(_ context.Context, query HistoryQuery) ([]db.ChangeEvent, map[string]db.MachineStats, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	events, err := e.db.GetChangeEvents(db.EventFilter{
		MachineID: query.MachineID,
		Start:     query.Start,
		End:       query.End,
		Limit:     limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	stats, err := e.db.GetMachineStats(query.MachineID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return events, stats, nil
}

func roomLabel(room string) *string {
	if room == "" {
		return nil
	}

	return &room
}
