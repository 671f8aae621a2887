package workout

import "sync"

// setNotifier wakes observers of a run after its sets change.
type setNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newSetNotifier() *setNotifier {
	return &setNotifier{
		mu:   sync.Mutex{},
		subs: make(map[string]map[chan struct{}]struct{}),
	}
}

// subscribe registers interest in runID. The returned channel receives at most one pending signal.
func (n *setNotifier) subscribe(runID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.subs[runID] == nil {
		n.subs[runID] = make(map[chan struct{}]struct{})
	}
	n.subs[runID][ch] = struct{}{}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[runID], ch)
		if len(n.subs[runID]) == 0 {
			delete(n.subs, runID)
		}
	}
}

func (n *setNotifier) notify(runID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[runID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *setNotifier) subscribers(runID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[runID])
}
