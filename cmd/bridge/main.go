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
	"os"

	"github.com/mfreeman451/laundrymon/pkg/bridge"
	"github.com/mfreeman451/laundrymon/pkg/config"
	"github.com/mfreeman451/laundrymon/pkg/lifecycle"
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
	log.Printf("Starting laundrymon bridge...")

	configPath := flag.String("config", "/etc/laundrymon/bridge.json", "Path to config file")
	flag.Parse()

	var cfg config.BridgeConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Broker credentials may come from the environment instead of the
	// config file.
	if username := os.Getenv("BROKER_USERNAME"); username != "" {
		cfg.BrokerUsername = username
	}

	if password := os.Getenv("BROKER_PASSWORD"); password != "" {
		cfg.BrokerPassword = password
	}

	b := bridge.New(cfg)

	opts := lifecycle.ServerOptions{
		ListenAddr:   cfg.ListenAddr,
		ServiceName:  "laundrymon-bridge",
		Service:      b,
		HealthServer: bridge.NewHealthServer(b),
	}

	if err := lifecycle.RunServer(context.Background(), &opts); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
