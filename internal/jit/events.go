package jit

// EventKind classifies activity feed events.
type EventKind uint8

const (
	EventCompiled EventKind = iota
	EventCompileFailed
	EventInvalidated
	EventGlobalInvalidation
)

// Event is one entry in the activity feed consumed by the monitor UI.
type Event struct {
	Kind      EventKind
	Unit      string
	CacheUsed uint32
	CacheSize uint32
}

// Subscribe attaches a buffered activity feed. Only one subscriber is
// supported; events are dropped when the buffer is full so the feed can
// never stall compilation.
func (j *JIT) Subscribe(buf int) <-chan Event {
	j.events = make(chan Event, buf)
	return j.events
}

// CloseFeed detaches the activity feed.
func (j *JIT) CloseFeed() {
	if j.events != nil {
		close(j.events)
		j.events = nil
	}
}

func (j *JIT) emit(ev Event) {
	if j.events == nil {
		return
	}
	select {
	case j.events <- ev:
	default:
	}
}
