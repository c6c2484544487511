package command

import (
	"context"

	"github.com/banshee-data/sslbridge/internal/timeutil"
)

// TickLoop calls Tick once per tick of Ticker until the context ends. A
// tick that returns an error is reported to OnError and the loop carries on.
// Pacing Dispatch calls is the loop's job, not the Dispatcher's.
type TickLoop struct {
	Ticker  timeutil.Ticker
	Tick    func(ctx context.Context, n uint64) error
	OnError func(n uint64, err error)
}

// Run blocks until ctx is done, then stops the ticker. Ticks are numbered
// from 1.
func (l *TickLoop) Run(ctx context.Context) {
	defer l.Ticker.Stop()
	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Ticker.C():
		}
		// A tick and cancellation can be ready together.
		if ctx.Err() != nil {
			return
		}
		n++
		if err := l.Tick(ctx, n); err != nil && l.OnError != nil {
			l.OnError(n, err)
		}
	}
}
