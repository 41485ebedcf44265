// Package telemetry pkg/telemetry/normalizer.go parses raw device messages
// into canonical machine status events.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is the root of all normalizer errors; callers can
	// errors.Is against it to distinguish bad input from everything else.
	ErrValidation = errors.New("invalid telemetry message")

	ErrInvalidPayload   = fmt.Errorf("%w: malformed payload", ErrValidation)
	ErrMissingMachineID = fmt.Errorf("%w: missing machine id", ErrValidation)
	ErrMissingFlags     = fmt.Errorf("%w: running and empty must be booleans", ErrValidation)
)

// topicMachineIDIndex is the segment of a status topic holding the machine
// id, e.g. laundry/machines/{machineId}/status.
const topicMachineIDIndex = 2

// RawMessage is a message as it arrives from the transport: the topic it
// was published on and the unparsed payload.
type RawMessage struct {
	Topic   string
	Payload []byte
}

// Event is the canonical form of a device report.
type Event struct {
	MachineID string `json:"machineId"`
	Running   bool   `json:"running"`
	Empty     bool   `json:"empty"`
	Room      string `json:"room,omitempty"`
}

// Normalize parses a raw message into a canonical event. The machine id is
// taken from the payload when present, otherwise from the topic. Unknown
// payload fields are ignored. Normalize has no side effects.
func Normalize(msg RawMessage) (Event, error) {
	var payload struct {
		MachineID string `json:"machineId"`
		Running   *bool  `json:"running"`
		Empty     *bool  `json:"empty"`
		Room      string `json:"room"`
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	machineID := strings.TrimSpace(payload.MachineID)
	if machineID == "" {
		machineID = machineIDFromTopic(msg.Topic)
	}

	if machineID == "" {
		return Event{}, ErrMissingMachineID
	}

	if payload.Running == nil || payload.Empty == nil {
		return Event{}, ErrMissingFlags
	}

	return Event{
		MachineID: machineID,
		Running:   *payload.Running,
		Empty:     *payload.Empty,
		Room:      strings.TrimSpace(payload.Room),
	}, nil
}

func machineIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) <= topicMachineIDIndex {
		return ""
	}

	return parts[topicMachineIDIndex]
}
