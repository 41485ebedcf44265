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

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mfreeman451/laundrymon/pkg/telemetry"
)

var (
	errIngestStatus    = fmt.Errorf("ingest endpoint returned non-200 status")
	errRetriesExceeded = fmt.Errorf("all delivery attempts failed")
)

const forwarderClientTimeout = 10 * time.Second

// Forwarder delivers normalized events to the ingest endpoint with a
// bounded number of attempts. An event that exhausts its attempts is
// dropped and counted; delivery order is not guaranteed across events.
type Forwarder struct {
	client    *http.Client
	endpoint  string
	attempts  int
	delay     time.Duration
	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewForwarder(endpoint string, attempts int, delay time.Duration) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Timeout: forwarderClientTimeout,
		},
		endpoint: endpoint,
		attempts: attempts,
		delay:    delay,
	}
}

type ingestResult struct {
	Success      bool `json:"success"`
	StateChanged bool `json:"stateChanged"`
}

// Deliver posts one event, retrying up to the configured attempt count
// with a fixed delay between attempts. It reports whether the store saw
// a state change.
func (f *Forwarder) Deliver(ctx context.Context, event telemetry.Event) (bool, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to encode event: %w", err)
	}

	log.Printf("[API] Posting: %s", payload)

	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		applied, err := f.post(ctx, payload)
		if err == nil {
			f.delivered.Add(1)
			return applied, nil
		}

		lastErr = err
		log.Printf("[API] Request failed (attempt %d/%d): %v", attempt, f.attempts, err)

		if attempt < f.attempts {
			select {
			case <-ctx.Done():
				f.dropped.Add(1)
				return false, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}

	f.dropped.Add(1)

	return false, fmt.Errorf("%w: %w", errRetriesExceeded, lastErr)
}

func (f *Forwarder) post(ctx context.Context, payload []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("%w: %d: %s", errIngestStatus, resp.StatusCode, body)
	}

	var result ingestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// The report was accepted; only the echo was unreadable.
		log.Printf("[API] Error decoding response: %v", err)
		return false, nil
	}

	return result.StateChanged, nil
}

// Delivered returns the number of successfully delivered events.
func (f *Forwarder) Delivered() int64 {
	return f.delivered.Load()
}

// Dropped returns the number of events abandoned after exhausting retries.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}
