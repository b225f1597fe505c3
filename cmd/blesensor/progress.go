package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps a single status line with elapsed time while a
// session is getting ready. The status text follows the session's Loading
// messages.
//
// Usage:
//
//	p := NewProgressPrinter(os.Stderr, "heart-rate")
//	p.Start()
//	defer p.Stop()
//	p.Update("connecting to Polar HR Sensor...")
//
// A ProgressPrinter is single-use: Start at most once, Stop any number of times.
type ProgressPrinter struct {
	out       io.Writer
	prefix    string
	status    atomic.Value // string
	startTime time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewProgressPrinter creates a printer writing to out.
func NewProgressPrinter(out io.Writer, prefix string) *ProgressPrinter {
	p := &ProgressPrinter{out: out, prefix: prefix}
	p.status.Store("starting...")
	return p
}

// Start begins redrawing the line in the background.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("ProgressPrinter.Start called more than once")
	}
	p.started = true
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})

	p.draw()
	go p.loop()
}

func (p *ProgressPrinter) loop() {
	defer close(p.done)

	ticker := time.NewTicker(progressUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			if !p.stopped {
				p.draw()
			}
			p.mu.Unlock()
		}
	}
}

// draw must be called with mu held.
func (p *ProgressPrinter) draw() {
	status := p.status.Load().(string)
	seconds := int(time.Since(p.startTime).Seconds())
	if seconds > 0 {
		fmt.Fprintf(p.out, "%s%s: %s (%ds)", clearLineSequence, p.prefix, status, seconds)
	} else {
		fmt.Fprintf(p.out, "%s%s: %s", clearLineSequence, p.prefix, status)
	}
}

// Update replaces the status text. Safe from any goroutine.
func (p *ProgressPrinter) Update(status string) {
	p.status.Store(status)
}

// Stop ends the redraw loop and clears the line. Safe to call repeatedly,
// before Start and on a nil printer.
func (p *ProgressPrinter) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	<-p.done
	fmt.Fprint(p.out, clearLineSequence)
}

// Active reports whether the line is currently being drawn.
func (p *ProgressPrinter) Active() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}
