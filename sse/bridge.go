package sse

import (
	"encoding/json"
	"time"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/logger"
)

// EventPayload is the JSON form of a graph event on the stream.
type EventPayload struct {
	Type         dag.EventType `json:"type"`
	Time         time.Time     `json:"time"`
	RunID        string        `json:"run_id,omitempty"`
	NodeID       string        `json:"node_id,omitempty"`
	NodeName     string        `json:"node_name,omitempty"`
	ClassName    string        `json:"class_name,omitempty"`
	PinID        string        `json:"pin_id,omitempty"`
	PinName      string        `json:"pin_name,omitempty"`
	ConnectionID string        `json:"connection_id,omitempty"`
	Progress     float64       `json:"progress"`
	Status       dag.Status    `json:"status,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// NewEventPayload converts ev for the wire.
func NewEventPayload(ev dag.Event) EventPayload {
	p := EventPayload{
		Type:         ev.Type,
		Time:         ev.Time,
		RunID:        ev.RunID,
		NodeID:       ev.NodeID,
		NodeName:     ev.NodeName,
		ClassName:    ev.ClassName,
		PinID:        ev.PinID,
		PinName:      ev.PinName,
		ConnectionID: ev.ConnectionID,
		Progress:     ev.Progress,
		Status:       ev.Status,
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}

// Forward publishes the execution events of g to the subscribers of runID
// until the returned func is called. Pin value changes are not forwarded.
func Forward(g *dag.Graph, b Broadcaster, runID string) (stop func()) {
	pattern := RunPattern(runID)
	return g.Subscribe(func(ev dag.Event) {
		if ev.Type == dag.EventPinValueChanged {
			return
		}
		data, err := json.Marshal(NewEventPayload(ev))
		if err != nil {
			logger.Get(logger.ComponentSSE).Warn("event not encodable", logger.ErrorFields("marshal", err))
			return
		}
		b.BroadcastToPattern(pattern, string(ev.Type), data)
	})
}

// Publish sends v as JSON to the subscribers of runID.
func Publish(b Broadcaster, runID, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.BroadcastToPattern(RunPattern(runID), event, data)
	return nil
}
