package event

import "time"

type Type string

const (
	TypeSessionIssued        Type = "session.issued"
	TypeSessionSuperseded    Type = "session.superseded"
	TypeSessionRefreshed     Type = "session.refreshed"
	TypeSessionRevoked       Type = "session.revoked"
	TypeSessionReuseDetected Type = "session.reuse_detected"
	TypeAccessRotated        Type = "access.rotated"
	TypePostAdded            Type = "post.added"
)

type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Actor     string         `json:"actor,omitempty"` // identity name
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

// Publisher is the write side used by services. A nil Publisher is allowed.
type Publisher interface {
	Publish(e Event)
}
