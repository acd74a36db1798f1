package chatclient

import "time"

// DeliveryState is a local message's lifecycle position.
type DeliveryState int

const (
	// StatePending: inserted optimistically, persistence not yet confirmed.
	StatePending DeliveryState = iota
	// StateDelivered: the store acknowledged the write, or the message
	// arrived from the server.
	StateDelivered
	// StateFailed: the persistence call failed; the message stays visible
	// until a retry supersedes it.
	StateFailed
)

func (s DeliveryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// LocalMessage is one entry in a session's merged view. CorrelationID is
// stable across the message's whole lifecycle; ServerID is attached once
// the store assigns one.
type LocalMessage struct {
	CorrelationID string
	ServerID      string
	Sender        string
	Content       string
	Timestamp     time.Time
	State         DeliveryState
}
