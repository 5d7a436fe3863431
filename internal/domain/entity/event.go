package entity

import "time"

// Типы событий, которые видят дашборды и брокер.
const (
	EventTransition    = "trigger.transition"
	EventScanStarted   = "scan.started"
	EventScanRejected  = "scan.rejected"
	EventScanCompleted = "scan.completed"
	EventScanFailed    = "scan.failed"
)

// Event событие жизненного цикла
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent создаёт событие с текущим временем.
func NewEvent(eventType string, data map[string]any) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}
