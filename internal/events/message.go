// Package events provides the update broadcaster that fans job status
// changes out to live subscribers.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
)

// MessageType is the discriminant of a Message in its serialized form
type MessageType string

const (
	// TypeJobStatusUpdate carries a job record after a persisted transition
	TypeJobStatusUpdate MessageType = "JobStatusUpdate"
	// TypeServerHeartbeat is a liveness ping with no data
	TypeServerHeartbeat MessageType = "ServerHeartbeat"
)

// Message is a closed sum type: JobStatusUpdate or ServerHeartbeat.
// It serializes as {"type": ..., "data": ...}.
type Message interface {
	Type() MessageType
	isMessage()
}

// JobStatusUpdate announces the current state of a job
type JobStatusUpdate struct {
	Job models.Job
}

// ServerHeartbeat is a liveness ping
type ServerHeartbeat struct{}

var (
	_ Message = JobStatusUpdate{}
	_ Message = ServerHeartbeat{}
)

// envelope is the wire form of a Message
type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Type implements Message
func (JobStatusUpdate) Type() MessageType { return TypeJobStatusUpdate }

func (JobStatusUpdate) isMessage() {}

// MarshalJSON implements json.Marshaler
func (m JobStatusUpdate) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(m.Job)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: TypeJobStatusUpdate, Data: data})
}

// Type implements Message
func (ServerHeartbeat) Type() MessageType { return TypeServerHeartbeat }

func (ServerHeartbeat) isMessage() {}

// MarshalJSON implements json.Marshaler
func (ServerHeartbeat) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{Type: TypeServerHeartbeat})
}

// Encode serializes a message into its wire form
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses the wire form of a message
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch env.Type {
	case TypeJobStatusUpdate:
		var job models.Job
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("invalid message: %s without data", env.Type)
		}
		if err := json.Unmarshal(env.Data, &job); err != nil {
			return nil, fmt.Errorf("invalid %s data: %w", env.Type, err)
		}
		return JobStatusUpdate{Job: job}, nil
	case TypeServerHeartbeat:
		return ServerHeartbeat{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
