package editor

import (
	"context"
	"time"

	"github.com/formgraph/formgraph/pkg/logging"
)

// Debouncer batches rapid graph mutations so a burst of edits costs one
// regeneration instead of one per call. A quiet period ends the batch; the
// max wait bounds how long a steady stream of edits can defer it.
type Debouncer struct {
	input       <-chan uint64
	output      chan uint64
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new mutation debouncer over graph revisions.
func NewDebouncer(input <-chan uint64, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan uint64, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing revision events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	var (
		timer        *time.Timer
		maxWaitTimer *time.Timer
		latest       uint64
		pending      int
	)

	flush := func() {
		if pending == 0 {
			return
		}

		logging.Debug("flushing batched mutations", "count", pending, "revision", latest)
		d.output <- latest

		pending = 0
		if timer != nil {
			timer.Stop()
		}
		if maxWaitTimer != nil {
			maxWaitTimer.Stop()
			maxWaitTimer = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			close(d.output)
			return

		case rev, ok := <-d.input:
			if !ok {
				flush()
				close(d.output)
				return
			}

			latest = rev
			pending++

			if timer == nil {
				timer = time.NewTimer(d.quietPeriod)
			} else {
				timer.Reset(d.quietPeriod)
			}
			if maxWaitTimer == nil {
				maxWaitTimer = time.NewTimer(d.maxWait)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			flush()

		case <-func() <-chan time.Time {
			if maxWaitTimer != nil {
				return maxWaitTimer.C
			}
			return nil
		}():
			flush()
		}
	}
}

// Output returns the channel of debounced revisions
func (d *Debouncer) Output() <-chan uint64 {
	return d.output
}
