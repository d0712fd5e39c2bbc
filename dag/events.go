package dag

import (
	"fmt"
	"time"
)

// EventType names a graph notification.
type EventType string

const (
	EventNodeAdded         EventType = "node_added"
	EventNodeRemoved       EventType = "node_removed"
	EventNodeMoved         EventType = "node_moved"
	EventConnectionAdded   EventType = "connection_added"
	EventConnectionRemoved EventType = "connection_removed"
	EventPinValueChanged   EventType = "pin_value_changed"
	EventExecutionStarted  EventType = "execution_started"
	EventExecutionProgress EventType = "execution_progress"
	EventExecutionFinished EventType = "execution_finished"
	EventExecutionError    EventType = "execution_error"
	EventNodeStarted       EventType = "node_started"
	EventNodeFinished      EventType = "node_finished"
	EventNodeFailed        EventType = "node_failed"
)

// Event is a notification about a structural change or run progress. Only
// the fields relevant to Type are set.
type Event struct {
	Type         EventType
	Time         time.Time
	RunID        string
	NodeID       string
	NodeName     string
	ClassName    string
	PinID        string
	PinName      string
	ConnectionID string
	Position     Position
	Progress     float64
	Status       Status
	Err          error
}

type listener struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event emitted by the graph and returns a
// func that removes it. Listeners run synchronously on the emitting
// goroutine, outside graph locks, in subscription order.
func (g *Graph) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.listenersMu.Lock()
	g.nextListener++
	id := g.nextListener
	g.listeners = append(g.listeners, listener{id: id, fn: fn})
	g.listenersMu.Unlock()

	return func() {
		g.listenersMu.Lock()
		defer g.listenersMu.Unlock()
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Graph) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	g.listenersMu.RLock()
	listeners := g.listeners
	g.listenersMu.RUnlock()

	for _, ev := range events {
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		for _, l := range listeners {
			g.deliver(l, ev)
		}
	}
}

func (g *Graph) deliver(l listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("event listener panicked", map[string]interface{}{
				"event": string(ev.Type),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	l.fn(ev)
}

func nodeEvent(t EventType, b *NodeBase) Event {
	return Event{Type: t, NodeID: b.ID(), NodeName: b.Name(), ClassName: b.ClassName()}
}

func connectionEvent(t EventType, c *Connection) Event {
	return Event{Type: t, ConnectionID: c.id, NodeID: c.input.node.ID(), PinID: c.input.id}
}
