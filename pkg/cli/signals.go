package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// Call stop to release the signal registration.
func SignalContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ReloadSignals returns a channel that receives a value for every SIGHUP.
// Signals arriving while a previous one is unhandled are coalesced. The
// channel is closed when ctx is done.
func ReloadSignals(ctx context.Context) <-chan struct{} {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
