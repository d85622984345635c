package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pinger is the probe target. In production it is the remote store; tests
// supply a fake.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks remote reachability with a periodic probe and reports
// online/offline transitions to subscribers. The monitor only observes and
// notifies; acting on a transition (draining the queue, refreshing caches) is
// the subscriber's job.
type Monitor struct {
	pinger   Pinger
	interval time.Duration

	mu          sync.Mutex
	online      bool
	everProbed  bool
	subscribers []chan bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewMonitor(pinger Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Online reports the result of the most recent probe. Before the first probe
// completes it reports false.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel that receives the new state on every
// online/offline transition. The channel is buffered; a slow subscriber drops
// transitions rather than blocking the probe loop.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 4)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Start launches the probe loop. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// Probe runs a single reachability check immediately, outside the ticker
// schedule. Useful when a caller has fresh evidence the state changed.
func (m *Monitor) Probe(ctx context.Context) bool {
	return m.probe(ctx)
}

func (m *Monitor) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	online := err == nil

	m.mu.Lock()
	changed := !m.everProbed || online != m.online
	m.everProbed = true
	m.online = online
	var subscribers []chan bool
	if changed {
		subscribers = append(subscribers, m.subscribers...)
	}
	m.mu.Unlock()

	if changed {
		if online {
			log.Printf("[connectivity] remote reachable")
		} else {
			log.Printf("[connectivity] remote unreachable: %v", err)
		}
		for _, ch := range subscribers {
			select {
			case ch <- online:
			default:
			}
		}
	}
	return online
}
