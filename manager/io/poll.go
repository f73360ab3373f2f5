package io

import (
	"context"
	"sync"
)

// Waker is a parked task that can be woken.
type Waker interface {
	// Wake marks the task ready. It is idempotent.
	Wake()
}

type IPollable interface {
	Waker
	// IsReady reports readiness without blocking.
	IsReady() bool
	// Wait blocks until ready or ctx is done.
	Wait(ctx context.Context) error
	// Channel returns the channel to select on.
	Channel() <-chan struct{}
	// Reset re-arms a pollable that has already fired.
	Reset()
}

// ChannelPollable uses a closed channel to signal readiness.
type ChannelPollable struct {
	mu        sync.Mutex
	readyChan chan struct{}
}

func NewPollable() *ChannelPollable {
	return &ChannelPollable{
		readyChan: make(chan struct{}),
	}
}

// NewReadyPollable returns a ChannelPollable that is already ready.
func NewReadyPollable() *ChannelPollable {
	ch := make(chan struct{})
	close(ch)
	return &ChannelPollable{
		readyChan: ch,
	}
}

func (p *ChannelPollable) IsReady() bool {
	select {
	case <-p.Channel():
		return true
	default:
		return false
	}
}

func (p *ChannelPollable) Wait(ctx context.Context) error {
	select {
	case <-p.Channel():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wake closes the current channel. Calling it on a ready pollable does
// nothing.
func (p *ChannelPollable) Wake() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.readyChan:
	default:
		close(p.readyChan)
	}
}

// Reset returns the pollable to not-ready. It does nothing if the pollable
// is not ready.
func (p *ChannelPollable) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.readyChan:
		p.readyChan = make(chan struct{})
	default:
	}
}

// Channel returns the current channel. It is replaced by Reset, so callers
// must fetch it again after every Reset.
func (p *ChannelPollable) Channel() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readyChan
}
