package cache

import (
	"sync"
	"sync/atomic"
)

// Dedup records item ids that have already been processed. Entries never
// expire, so an id is reported as new at most once per process lifetime.
type Dedup struct {
	seen  sync.Map
	count atomic.Int64
}

func NewDedup() *Dedup {
	return &Dedup{}
}

// MarkIfNew returns true the first time id is seen and false afterwards,
// across any number of concurrent callers.
func (d *Dedup) MarkIfNew(id string) bool {
	if _, loaded := d.seen.LoadOrStore(id, struct{}{}); loaded {
		return false
	}
	d.count.Add(1)
	return true
}

// Len returns the number of distinct ids seen so far
func (d *Dedup) Len() int {
	return int(d.count.Load())
}
