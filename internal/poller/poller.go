package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleFunc runs one polling cycle
type CycleFunc func(ctx context.Context) error

// Poller runs a cycle, waits for the interval, then runs the next one.
// A slow cycle pushes the next one out instead of overlapping it.
type Poller struct {
	name     string
	interval time.Duration
	cycle    CycleFunc

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// New creates a new Poller
func New(name string, interval time.Duration, cycle CycleFunc) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		cycle:    cycle,
	}
}

// Start begins the polling loop in the background. Calling Start on a
// running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopChan = make(chan struct{})
	p.running = true

	p.wg.Add(1)
	go p.loop(ctx, p.stopChan)
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	slog.Info("Starting poller", "name", p.name, "interval", p.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			// A Stop and Start may already have replaced this loop
			if p.stopChan == stop {
				p.running = false
			}
			p.mu.Unlock()
			slog.Info("Poller stopped (context cancelled)", "name", p.name)
			return
		case <-stop:
			slog.Info("Poller stopped", "name", p.name)
			return
		case <-timer.C:
			if err := p.cycle(ctx); err != nil {
				slog.Error("Poll cycle failed", "name", p.name, "error", err)
			}
			// Rescheduled only after the cycle settles
			timer.Reset(p.interval)
		}
	}
}

// Stop signals the poller to stop and waits for the current cycle to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports whether the loop is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
