package session

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Dispatcher pushes serialized events to open connections. Delivery is
// best-effort: a full or missing outbox is skipped, never retried.
type Dispatcher struct {
	outboxes map[string]chan []byte
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		outboxes: make(map[string]chan []byte),
		log:      log,
	}
}

// Add registers a connection's outbox.
func (d *Dispatcher) Add(connID string, out chan []byte) {
	d.outboxes[connID] = out
}

// Remove unregisters a connection and closes its outbox so the writer
// goroutine drains and exits. Idempotent.
func (d *Dispatcher) Remove(connID string) {
	if out, ok := d.outboxes[connID]; ok {
		delete(d.outboxes, connID)
		close(out)
	}
}

// Count returns the number of open connections.
func (d *Dispatcher) Count() int { return len(d.outboxes) }

// ConnIDs returns the ids of all open connections.
func (d *Dispatcher) ConnIDs() []string {
	ids := make([]string, 0, len(d.outboxes))
	for id := range d.outboxes {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast serializes v once and pushes it to every connection except
// exclude (empty string excludes nobody).
func (d *Dispatcher) Broadcast(v any, exclude string) {
	payload, err := json.Marshal(v)
	if err != nil {
		d.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	for id, out := range d.outboxes {
		if id == exclude {
			continue
		}
		d.push(id, out, payload)
	}
}

// Send pushes v to a single connection.
func (d *Dispatcher) Send(connID string, v any) {
	out, ok := d.outboxes[connID]
	if !ok {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		d.log.Error("marshal send", zap.Error(err))
		return
	}
	d.push(connID, out, payload)
}

func (d *Dispatcher) push(connID string, out chan []byte, payload []byte) {
	select {
	case out <- payload:
	default:
		// Slow consumer: drop this message rather than block the loop.
		d.log.Debug("outbox full, dropping message", zap.String("conn", connID))
	}
}
