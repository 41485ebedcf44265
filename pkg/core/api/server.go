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

// Package api pkg/core/api/server.go exposes the presence engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mfreeman451/laundrymon/pkg/core"
	"github.com/mfreeman451/laundrymon/pkg/db"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type APIServer struct {
	engine     core.Service
	router     *mux.Router
	httpServer *http.Server
}

func NewAPIServer(engine core.Service) *APIServer {
	s := &APIServer{
		engine: engine,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	// Add CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	s.router.HandleFunc("/api/machines", s.postMachine).Methods("POST")
	s.router.HandleFunc("/api/machines", s.getMachines).Methods("GET")
	s.router.HandleFunc("/api/machines/{id}", s.getMachine).Methods("GET")
	s.router.HandleFunc("/api/history", s.getHistory).Methods("GET")
}

// Router exposes the handler tree for tests and embedding.
func (s *APIServer) Router() *mux.Router {
	return s.router
}

func (s *APIServer) postMachine(w http.ResponseWriter, r *http.Request) {
	var payload ReportPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if payload.MachineID == "" || payload.Running == nil || payload.Empty == nil {
		s.writeError(w, http.StatusBadRequest, "Missing required fields: machineId, running, empty")
		return
	}

	stateChanged, err := s.engine.Report(r.Context(), core.ReportRequest{
		MachineID: payload.MachineID,
		Running:   *payload.Running,
		Empty:     *payload.Empty,
		Room:      payload.Room,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidReport) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		log.Printf("Error applying report for %s: %v", payload.MachineID, err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")

		return
	}

	s.writeJSON(w, http.StatusOK, ReportResponse{
		Success:   true,
		MachineID: payload.MachineID,
		Received: ReceivedFlags{
			Running: *payload.Running,
			Empty:   *payload.Empty,
		},
		StateChanged: stateChanged,
	})
}

func (s *APIServer) getMachines(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.ListMachines(r.Context())
	if err != nil {
		log.Printf("Error listing machines: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")

		return
	}

	s.writeJSON(w, http.StatusOK, MachinesResponse{
		Success:   true,
		Machines:  statuses,
		Timestamp: time.Now(),
	})
}

func (s *APIServer) getMachine(w http.ResponseWriter, r *http.Request) {
	machineID := mux.Vars(r)["id"]

	status, err := s.engine.GetMachine(r.Context(), machineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Machine not found")
			return
		}

		log.Printf("Error getting machine %s: %v", machineID, err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")

		return
	}

	s.writeJSON(w, http.StatusOK, MachineResponse{
		Success:   true,
		Machine:   *status,
		Timestamp: time.Now(),
	})
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	echo := HistoryQueryEcho{
		MachineID: params.Get("machineId"),
		Limit:     params.Get("limit"),
		StartDate: params.Get("startDate"),
		EndDate:   params.Get("endDate"),
	}

	query := core.HistoryQuery{MachineID: echo.MachineID}

	if echo.Limit != "" {
		limit, err := strconv.Atoi(echo.Limit)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}

		query.Limit = limit
	}

	if echo.StartDate != "" {
		start, err := time.Parse(time.RFC3339, echo.StartDate)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid startDate")
			return
		}

		query.Start = start
	}

	if echo.EndDate != "" {
		end, err := time.Parse(time.RFC3339, echo.EndDate)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid endDate")
			return
		}

		query.End = end
	}

	records, stats, err := s.engine.History(r.Context(), query)
	if err != nil {
		log.Printf("Error querying history: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")

		return
	}

	if records == nil {
		records = []db.ChangeEvent{}
	}

	if stats == nil {
		stats = map[string]db.MachineStats{}
	}

	s.writeJSON(w, http.StatusOK, HistoryResponse{
		Success: true,
		Count:   len(records),
		Records: records,
		Stats:   stats,
		Query:   echo,
	})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// Start serves the API on addr and blocks until the listener fails or
// the server is shut down.
func (s *APIServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	log.Printf("API server listening on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests before closing the listener.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
