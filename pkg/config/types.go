package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	errNoListenAddr    = errors.New("listen_addr is required")
	errNoDBPath        = errors.New("db_path is required")
	errNoBrokerAddress = errors.New("broker_address is required")
	errNoTopic         = errors.New("topic is required")
	errNoIngressURL    = errors.New("ingress_url is required")
)

const (
	// DefaultOfflineAfter is how long a machine may stay silent before a
	// listing reports it offline.
	DefaultOfflineAfter = 2 * time.Minute

	// DefaultRetryAttempts and DefaultRetryDelay bound the bridge's
	// delivery retries.
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// CoreConfig represents the configuration for the core service.
type CoreConfig struct {
	ListenAddr       string            `json:"listen_addr"`                 // HTTP API, e.g. :8090
	GrpcAddr         string            `json:"grpc_addr,omitempty"`         // health endpoint, e.g. :50052
	DBPath           string            `json:"db_path"`                     // SQLite database file
	OfflineAfter     Duration          `json:"offline_after,omitempty"`     // silence threshold for availability
	HistoryRetention Duration          `json:"history_retention,omitempty"` // 0 keeps the ledger forever
	Rooms            map[string]string `json:"rooms,omitempty"`             // area prefix -> room name
}

func (c *CoreConfig) Validate() error {
	if c.ListenAddr == "" {
		return errNoListenAddr
	}

	if c.DBPath == "" {
		return errNoDBPath
	}

	if c.GrpcAddr == "" {
		c.GrpcAddr = ":50052"
	}

	if c.OfflineAfter <= 0 {
		c.OfflineAfter = Duration(DefaultOfflineAfter)
	}

	return nil
}

// BridgeConfig represents the configuration for the telemetry bridge.
type BridgeConfig struct {
	BrokerAddress  string   `json:"broker_address"`            // host:port of the status broker
	BrokerUsername string   `json:"broker_username,omitempty"` // optional broker credentials
	BrokerPassword string   `json:"broker_password,omitempty"`
	Topic          string   `json:"topic"`                    // e.g. laundry/machines/+/status
	IngressURL     string   `json:"ingress_url"`              // core ingress endpoint
	RetryAttempts  int      `json:"retry_attempts,omitempty"` // delivery attempts per message
	RetryDelay     Duration `json:"retry_delay,omitempty"`    // fixed delay between attempts
	FeedTimeout    Duration `json:"feed_timeout,omitempty"`   // health degrades when the feed is silent this long
	ListenAddr     string   `json:"listen_addr"`              // gRPC health endpoint, e.g. :50053
}

func (c *BridgeConfig) Validate() error {
	if c.BrokerAddress == "" {
		return errNoBrokerAddress
	}

	if c.Topic == "" {
		return errNoTopic
	}

	if c.IngressURL == "" {
		return errNoIngressURL
	}

	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = Duration(DefaultRetryDelay)
	}

	return nil
}
