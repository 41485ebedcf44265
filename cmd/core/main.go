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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mfreeman451/laundrymon/pkg/config"
	"github.com/mfreeman451/laundrymon/pkg/core"
	"github.com/mfreeman451/laundrymon/pkg/core/api"
	"github.com/mfreeman451/laundrymon/pkg/db"
	"github.com/mfreeman451/laundrymon/pkg/lifecycle"
	"github.com/mfreeman451/laundrymon/pkg/rooms"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log.Printf("Starting laundrymon core...")

	configPath := flag.String("config", "/etc/laundrymon/core.json", "Path to config file")
	flag.Parse()

	var cfg config.CoreConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	engine := core.NewEngine(database, rooms.NewMapper(cfg.Rooms), core.Config{
		OfflineAfter:     time.Duration(cfg.OfflineAfter),
		HistoryRetention: time.Duration(cfg.HistoryRetention),
	})

	apiServer := api.NewAPIServer(engine)

	opts := lifecycle.ServerOptions{
		ListenAddr:  cfg.GrpcAddr,
		ServiceName: "laundrymon-core",
		Service: &coreService{
			engine:     engine,
			apiServer:  apiServer,
			listenAddr: cfg.ListenAddr,
		},
		HealthServer: core.NewHealthServer(engine),
	}

	if err := lifecycle.RunServer(context.Background(), &opts); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// coreService ties the HTTP API and the presence engine into one
// lifecycle-managed service.
type coreService struct {
	engine     *core.Engine
	apiServer  *api.APIServer
	listenAddr string
}

func (s *coreService) Start(ctx context.Context) error {
	go func() {
		if err := s.apiServer.Start(s.listenAddr); err != nil {
			log.Printf("HTTP server failed: %v", err)
		}
	}()

	return s.engine.Start(ctx)
}

func (s *coreService) Stop(ctx context.Context) error {
	if err := s.apiServer.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	return s.engine.Stop(ctx)
}
