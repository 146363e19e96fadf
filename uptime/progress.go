package uptime

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// startProgress writes a countdown to w on every tick until the deadline passes or ctx
// ends. The returned stop cancels the ticker and waits for the goroutine; it is safe to
// call more than once.
func startProgress(ctx context.Context, w io.Writer, deadline time.Time, tick time.Duration, now func() time.Time) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	remaining := func() int64 {
		return int64(math.Round(deadline.Sub(now()).Seconds()))
	}

	fmt.Fprintf(w, "\rTime remaining: %d seconds", remaining())

	go func() {
		defer close(done)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				left := remaining()
				if left <= 0 {
					return
				}
				fmt.Fprintf(w, "\rTime remaining: %d seconds", left)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
