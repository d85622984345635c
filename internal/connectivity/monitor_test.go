package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestOnlineReflectsLastProbe(t *testing.T) {
	pinger := &fakePinger{}
	monitor := NewMonitor(pinger, time.Hour)
	ctx := context.Background()

	if monitor.Online() {
		t.Fatal("monitor must report offline before the first probe")
	}

	if !monitor.Probe(ctx) {
		t.Fatal("probe with healthy pinger must report online")
	}
	if !monitor.Online() {
		t.Fatal("Online() must reflect the successful probe")
	}

	pinger.setErr(errors.New("connection refused"))
	if monitor.Probe(ctx) {
		t.Fatal("probe with failing pinger must report offline")
	}
	if monitor.Online() {
		t.Fatal("Online() must reflect the failed probe")
	}
}

func TestSubscribeDeliversTransitionsOnly(t *testing.T) {
	pinger := &fakePinger{err: errors.New("down")}
	monitor := NewMonitor(pinger, time.Hour)
	ctx := context.Background()

	events := monitor.Subscribe()

	// First probe establishes the state and notifies.
	monitor.Probe(ctx)
	select {
	case online := <-events:
		if online {
			t.Fatal("first event must be offline")
		}
	default:
		t.Fatal("expected initial state event")
	}

	// Repeated probes with the same result stay quiet.
	monitor.Probe(ctx)
	monitor.Probe(ctx)
	select {
	case <-events:
		t.Fatal("no event expected without a transition")
	default:
	}

	pinger.setErr(nil)
	monitor.Probe(ctx)
	select {
	case online := <-events:
		if !online {
			t.Fatal("expected online transition")
		}
	default:
		t.Fatal("expected transition event")
	}
}

func TestStartStopsCleanly(t *testing.T) {
	pinger := &fakePinger{}
	monitor := NewMonitor(pinger, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)

	deadline := time.After(time.Second)
	for !monitor.Online() {
		select {
		case <-deadline:
			t.Fatal("probe loop never ran")
		case <-time.After(time.Millisecond):
		}
	}

	monitor.Stop()
}
