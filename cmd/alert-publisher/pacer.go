package main

import (
	"math/rand"
	"sync"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long the poll loop rests between batches.
type pacer struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func newPacer(base, ceiling time.Duration) *pacer {
	if base <= 0 {
		base = fallbackPoll
	}
	if ceiling < base {
		ceiling = base
	}
	return &pacer{
		base:    base,
		ceiling: ceiling,
		current: base,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// after returns the rest following a batch. A busy batch goes straight on;
// failures double the delay up to the ceiling and success resets it.
func (p *pacer) after(busy bool, err error) time.Duration {
	if err != nil {
		p.current *= 2
		if p.current > p.ceiling {
			p.current = p.ceiling
		}
		return p.jitter(p.current)
	}
	p.current = p.base
	if busy {
		return 0
	}
	return p.jitter(p.base)
}

func (p *pacer) jitter(d time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return d + time.Duration(p.rnd.Int63n(int64(jitterWindow)))
}
