package scheduler

import "github.com/jdziat/simple-recurring-jobs/pkg/core"

// eventBuffer is the capacity of each subscriber channel.
const eventBuffer = 100

// Events returns a channel receiving scheduler events.
// The caller must call Unsubscribe when done.
func (s *Scheduler) Events() <-chan core.Event {
	ch := make(chan core.Event, eventBuffer)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel created by Events. The channel is not
// closed; no further events are sent to it once Unsubscribe returns.
func (s *Scheduler) Unsubscribe(ch <-chan core.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Emit sends e to every subscriber. Full subscribers miss the event.
func (s *Scheduler) Emit(e core.Event) {
	s.subMu.RLock()
	subs := make([]chan core.Event, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
