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

// Package bridge pkg/bridge/bridge.go subscribes to the broker's machine
// status feed and forwards normalized reports to the ingest API.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfreeman451/laundrymon/pkg/config"
	"github.com/mfreeman451/laundrymon/pkg/telemetry"
)

const (
	reconnectInterval  = 5 * time.Second
	statusLogInterval  = 60 * time.Second
	handshakeTimeout   = 10 * time.Second
	defaultFeedTimeout = 5 * time.Minute
)

var errSubscribeRejected = errors.New("broker rejected subscription")

// subscribeRequest is the frame sent after connecting to narrow the feed
// to one topic pattern.
type subscribeRequest struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type subscribeReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// feedFrame is one broker message: the topic it was published on and the
// raw device payload.
type feedFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge maintains the broker subscription and hands each frame to the
// forwarder. It keeps running through broker outages, reconnecting until
// stopped.
type Bridge struct {
	config    config.BridgeConfig
	forwarder *Forwarder

	mu           sync.RWMutex
	ws           *websocket.Conn
	connected    bool
	lastMessage  time.Time
	messageCount int64
	errorCount   int64

	Done chan struct{}
}

func New(cfg config.BridgeConfig) *Bridge {
	return &Bridge{
		config:    cfg,
		forwarder: NewForwarder(cfg.IngressURL, cfg.RetryAttempts, time.Duration(cfg.RetryDelay)),
		Done:      make(chan struct{}),
	}
}

// Start connects to the broker and blocks, reconnecting on failure,
// until the context is canceled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	log.Printf("[BRIDGE] Broker: %s, ingest: %s, topic: %s",
		b.config.BrokerAddress, b.config.IngressURL, b.config.Topic)

	go b.logStatus(ctx)

	for {
		if err := b.runFeed(ctx); err != nil {
			log.Printf("[MQTT] Connection closed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.Done:
			return nil
		case <-time.After(reconnectInterval):
			log.Printf("[MQTT] Reconnecting...")
		}
	}
}

// Stop closes the feed and stops the reconnect loop.
func (b *Bridge) Stop(_ context.Context) error {
	close(b.Done)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ws != nil {
		if err := b.ws.Close(); err != nil {
			log.Printf("Error closing websocket connection: %v", err)
		}

		b.ws = nil
	}

	b.connected = false

	return nil
}

// runFeed dials the broker, subscribes, and reads frames until the
// connection drops.
func (b *Bridge) runFeed(ctx context.Context) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}

	defer func() {
		b.mu.Lock()
		b.connected = false
		b.ws = nil
		b.mu.Unlock()

		if err := conn.Close(); err != nil {
			log.Printf("Error closing websocket connection: %v", err)
		}
	}()

	if err := b.subscribe(conn); err != nil {
		return err
	}

	b.mu.Lock()
	b.ws = conn
	b.connected = true
	b.lastMessage = time.Now()
	b.mu.Unlock()

	log.Printf("[BRIDGE] Ready! Waiting for machine status updates...")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.Done:
			return nil
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("websocket read failed: %w", err)
			}

			b.handleMessage(ctx, data)
		}
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: b.config.BrokerAddress, Path: "/feed"}

	log.Printf("[MQTT] Connecting to %s...", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if b.config.BrokerUsername != "" {
		credentials := b.config.BrokerUsername + ":" + b.config.BrokerPassword
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credentials)))
		log.Printf("[MQTT] Using authentication (user: %s)", b.config.BrokerUsername)
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return conn, nil
}

func (b *Bridge) subscribe(conn *websocket.Conn) error {
	log.Printf("[MQTT] Subscribing to: %s", b.config.Topic)

	if err := conn.WriteJSON(subscribeRequest{Action: "subscribe", Topic: b.config.Topic}); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	var reply subscribeReply
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read subscription reply: %w", err)
	}

	if !reply.Success {
		return fmt.Errorf("%w: %s", errSubscribeRejected, reply.Error)
	}

	log.Printf("[MQTT] Subscribed to: %s", b.config.Topic)

	return nil
}

// handleMessage normalizes one frame and forwards it. Malformed frames
// are counted and skipped; delivery runs in its own goroutine so a slow
// ingest endpoint does not stall the feed.
func (b *Bridge) handleMessage(ctx context.Context, data []byte) {
	b.mu.Lock()
	b.messageCount++
	b.lastMessage = time.Now()
	count := b.messageCount
	b.mu.Unlock()

	var frame feedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("[MQTT] Failed to parse frame: %v", err)
		log.Printf("[MQTT] Raw message: %s", data)
		b.countError()

		return
	}

	log.Printf("[MQTT] #%d Message on topic: %s", count, frame.Topic)

	event, err := telemetry.Normalize(telemetry.RawMessage{Topic: frame.Topic, Payload: frame.Payload})
	if err != nil {
		log.Printf("[MQTT] Dropping message: %v", err)
		b.countError()

		return
	}

	go func() {
		if _, err := b.forwarder.Deliver(ctx, event); err != nil {
			log.Printf("[API] Giving up on %s: %v", event.MachineID, err)
			b.countError()
		}
	}()
}

func (b *Bridge) countError() {
	b.mu.Lock()
	b.errorCount++
	b.mu.Unlock()
}

// Healthy reports whether the feed is connected and recent enough to
// trust. A quiet feed older than the configured timeout is unhealthy
// even while the socket stays open.
func (b *Bridge) Healthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.connected {
		return false
	}

	timeout := time.Duration(b.config.FeedTimeout)
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}

	return time.Since(b.lastMessage) < timeout
}

func (b *Bridge) logStatus(ctx context.Context) {
	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Done:
			return
		case <-ticker.C:
			b.mu.RLock()
			messages, errs := b.messageCount, b.errorCount
			b.mu.RUnlock()

			log.Printf("[STATUS] Messages received: %d, Errors: %d, Delivered: %d, Dropped: %d",
				messages, errs, b.forwarder.Delivered(), b.forwarder.Dropped())
		}
	}
}
