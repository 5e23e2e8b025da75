// Package pacer makes pacing out API calls easy.
//
// It is used to keep the renewal fan-out under the remote service's
// global rate limit by spacing out the start of each request.
package pacer

import (
	"sync"
	"time"
)

// Pacer spaces out calls so that successive Wait returns are at least
// minSleep apart.  It is safe for concurrent use.
type Pacer struct {
	mu       sync.Mutex
	minSleep time.Duration
	last     time.Time
}

// New returns a Pacer which spaces calls minSleep apart.
func New(minSleep time.Duration) *Pacer {
	return &Pacer{minSleep: minSleep}
}

// Wait blocks until at least minSleep has passed since the previous
// call to Wait returned.
func (p *Pacer) Wait() {
	p.mu.Lock()
	now := time.Now()
	next := p.last.Add(p.minSleep)
	if next.After(now) {
		p.last = next
		p.mu.Unlock()
		time.Sleep(next.Sub(now))
		return
	}
	p.last = now
	p.mu.Unlock()
}
