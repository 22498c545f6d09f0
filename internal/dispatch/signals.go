package dispatch

import (
	"context"
	"sync"
)

// DefaultSignalRetention is how many distinct names a bus remembers
const DefaultSignalRetention = 1024

// Signals is a named completion bus. Every Emit is delivered to exactly one
// Take; emissions with no waiter are queued until taken. Only the most
// recently emitted names are remembered: once more than the retention limit
// of distinct names has been emitted, the oldest name's queued emissions and
// count are forgotten.
type Signals struct {
	mu        sync.Mutex
	pending   map[string]int
	waiters   map[string][]chan struct{}
	emitted   map[string]int
	order     []string
	retain    int
	observers map[int]chan string
	nextObs   int
}

// NewSignals creates an empty bus retaining DefaultSignalRetention names
func NewSignals() *Signals {
	return NewSignalsWithRetention(DefaultSignalRetention)
}

// NewSignalsWithRetention creates an empty bus remembering at most n
// distinct names. n <= 0 means DefaultSignalRetention.
func NewSignalsWithRetention(n int) *Signals {
	if n <= 0 {
		n = DefaultSignalRetention
	}
	return &Signals{
		pending:   make(map[string]int),
		waiters:   make(map[string][]chan struct{}),
		emitted:   make(map[string]int),
		retain:    n,
		observers: make(map[int]chan string),
	}
}

// Emit fires name once. An empty name is ignored.
func (s *Signals) Emit(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remember(name)
	s.emitted[name]++
	for _, ch := range s.observers {
		select {
		case ch <- name:
		default:
		}
	}
	if ws := s.waiters[name]; len(ws) > 0 {
		ch := ws[0]
		if len(ws) == 1 {
			delete(s.waiters, name)
		} else {
			s.waiters[name] = ws[1:]
		}
		close(ch)
		return
	}
	s.pending[name]++
}

// Take blocks until name is emitted or ctx is done. A queued emission is
// consumed immediately.
func (s *Signals) Take(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.pending[name] > 0 {
		s.pending[name]--
		if s.pending[name] == 0 {
			delete(s.pending, name)
		}
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters[name] = append(s.waiters[name], ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		select {
		case <-ch:
			// emitted while we were giving up; hand it back unless forgotten
			if _, ok := s.emitted[name]; ok {
				s.pending[name]++
			}
		default:
			s.removeWaiter(name, ch)
		}
		return ctx.Err()
	}
}

// remember records name as the newest and forgets the oldest names past
// the retention limit. Callers hold s.mu.
func (s *Signals) remember(name string) {
	if _, ok := s.emitted[name]; ok {
		return
	}
	s.order = append(s.order, name)
	for len(s.order) > s.retain {
		old := s.order[0]
		s.order[0] = ""
		s.order = s.order[1:]
		delete(s.emitted, old)
		delete(s.pending, old)
	}
}

func (s *Signals) removeWaiter(name string, ch chan struct{}) {
	ws := s.waiters[name]
	for i, w := range ws {
		if w == ch {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(s.waiters, name)
	} else {
		s.waiters[name] = ws
	}
}

// Count returns how many times name has been emitted, or 0 once it has
// been forgotten
func (s *Signals) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted[name]
}

// Observe streams every emitted name. Slow observers miss names.
func (s *Signals) Observe() (<-chan string, func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	ch := make(chan string, 64)
	s.observers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}
