package editor

import (
	"context"
	"testing"
	"time"
)

func TestDebouncer_BatchesBurst(t *testing.T) {
	input := make(chan uint64, 10)
	d := NewDebouncer(input, 20*time.Millisecond, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for rev := uint64(1); rev <= 5; rev++ {
		input <- rev
	}

	select {
	case rev := <-d.Output():
		if rev != 5 {
			t.Errorf("Expected the latest revision 5, got %d", rev)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for flush")
	}

	select {
	case rev := <-d.Output():
		t.Errorf("Expected one flush for the burst, got another with revision %d", rev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_MaxWaitBoundsSteadyStream(t *testing.T) {
	input := make(chan uint64)
	d := NewDebouncer(input, 50*time.Millisecond, 150*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// keep feeding faster than the quiet period; max wait must still flush
	done := make(chan struct{})
	go func() {
		defer close(done)
		rev := uint64(0)
		for {
			rev++
			select {
			case input <- rev:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-d.Output():
	case <-time.After(time.Second):
		t.Fatal("Expected max wait to force a flush under a steady stream")
	}

	cancel()
	<-done
}

func TestDebouncer_FlushesOnClose(t *testing.T) {
	input := make(chan uint64, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- 42
	// give the run loop a moment to pick it up, then close the input
	time.Sleep(20 * time.Millisecond)
	close(input)

	select {
	case rev, ok := <-d.Output():
		if !ok {
			t.Fatal("Expected the pending revision before close")
		}
		if rev != 42 {
			t.Errorf("Expected revision 42, got %d", rev)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for close flush")
	}
}
