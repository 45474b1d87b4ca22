package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans every event out to all configured sinks in order.
type MultiEmitter struct {
	sinks []Emitter
}

// NewMultiEmitter constructs a fan-out emitter. Nil sinks are skipped.
func NewMultiEmitter(sinks ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, sink := range m.sinks {
		sink.Emit(evt)
	}
}
