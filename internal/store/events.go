package store

// EventKind identifies a store mutation
type EventKind int

const (
	EventAdded EventKind = iota
	EventUpdated
	EventDeleted
	EventStarted
	EventDemoted
	EventCompleted
	EventReordered
	EventCleared
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventStarted:
		return "started"
	case EventDemoted:
		return "demoted"
	case EventCompleted:
		return "completed"
	case EventReordered:
		return "reordered"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a mutation has been applied.
// TaskID is empty for collection-wide events.
type Event struct {
	Kind   EventKind
	TaskID string
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it. Listeners run synchronously, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) emit(events ...Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, e := range events {
		s.logger.Debug("task event", "kind", e.Kind.String(), "task", e.TaskID)
		for _, fn := range fns {
			fn(e)
		}
	}
}
