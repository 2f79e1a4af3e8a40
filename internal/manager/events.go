package manager

// Event represents a slot lifecycle event.
// Minimal and stable: name + model uid and optional fields.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// Event names.
const (
	EventLoadStart     = "load_start"
	EventLoadDone      = "load_done"
	EventLoadFailed    = "load_failed"
	EventUnloadStart   = "unload_start"
	EventUnloadTimeout = "unload_timeout"
	EventUnloadDone    = "unload_done"
	EventRescanDone    = "rescan_done"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (m *Manager) publish(name, uid string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, ModelID: uid, Fields: fields})
}
