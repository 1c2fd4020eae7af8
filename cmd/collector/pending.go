package main

import "sync"

// pendingSet tracks keywords that are queued or mid-scrape so the
// scheduler can coalesce duplicate jobs across rounds.
type pendingSet struct {
	mu  sync.Mutex
	set map[string]bool
}

func newPendingSet() *pendingSet {
	return &pendingSet{set: make(map[string]bool)}
}

// Add marks kw pending and reports whether it was newly added.
func (p *pendingSet) Add(kw string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set[kw] {
		return false
	}
	p.set[kw] = true
	return true
}

func (p *pendingSet) Remove(kw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, kw)
}

func (p *pendingSet) Has(kw string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set[kw]
}

func (p *pendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.set)
}
