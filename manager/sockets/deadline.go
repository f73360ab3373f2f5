package sockets

import (
	"context"
	"time"
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type direction int

const (
	dirRead direction = iota
	dirWrite
)

func (d direction) set(c deadliner, t time.Time) error {
	if d == dirRead {
		return c.SetReadDeadline(t)
	}
	return c.SetWriteDeadline(t)
}

var aLongTimeAgo = time.Unix(1, 0)

// interruptOnDone makes a parked socket call return when ctx is done by
// forcing the deadline of dir into the past. The other direction is left
// alone. The returned func must be called with the call's error once it
// returns; it restores the deadline and substitutes ctx.Err() when the
// interruption fired.
func interruptOnDone(ctx context.Context, c deadliner, dir direction) (func(error) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ctx.Done() == nil {
		return func(err error) error { return err }, nil
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		dir.set(c, aLongTimeAgo)
		close(fired)
	})
	return func(err error) error {
		if stop() {
			return err
		}
		<-fired
		dir.set(c, time.Time{})
		if err != nil {
			return ctx.Err()
		}
		return nil
	}, nil
}
