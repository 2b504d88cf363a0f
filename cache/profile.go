package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Profiles maps channel ids to avatar URLs. Only successful lookups are
// stored and they stay valid for the lifetime of the process.
type Profiles struct {
	mu      sync.RWMutex
	avatars map[string]string
	group   singleflight.Group
}

func NewProfiles() *Profiles {
	return &Profiles{
		avatars: make(map[string]string),
	}
}

func (p *Profiles) Get(channelId string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	url, ok := p.avatars[channelId]
	return url, ok
}

// GetOrCompute returns the cached value for channelId or calls compute to
// produce one. Concurrent callers missing on the same key share a single
// compute call. Errors are returned to every waiting caller and not cached.
//
// The shared call runs detached from the cancellation of the caller that
// started it, so compute must bound itself. Each caller stops waiting when
// its own ctx is done.
func (p *Profiles) GetOrCompute(ctx context.Context, channelId string, compute func(ctx context.Context) (string, error)) (string, error) {
	if url, ok := p.Get(channelId); ok {
		return url, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(channelId, func() (interface{}, error) {
		// A previous flight may have finished between Get and DoChan
		if url, ok := p.Get(channelId); ok {
			return url, nil
		}

		url, err := compute(flightCtx)
		if err != nil {
			return "", err
		}

		p.mu.Lock()
		p.avatars[channelId] = url
		p.mu.Unlock()
		return url, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *Profiles) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.avatars)
}
