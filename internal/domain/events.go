package domain

import "time"

type EventKind string

const (
	EventConnection EventKind = "connection"
	EventStarted    EventKind = "started"
	EventStopped    EventKind = "stopped"
	EventSignal     EventKind = "signal"
	EventOrder      EventKind = "order"
	EventLeverage   EventKind = "leverage"
	EventError      EventKind = "error"
)

// Event is a human-readable status line for the presentation layer.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (e Event) String() string {
	line := e.Time.Format("15:04:05") + " [" + string(e.Kind) + "] " + e.Message
	if e.Error != "" {
		line += ": " + e.Error
	}
	return line
}
