package telegraph

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Backoff is an exponential delay schedule: Base, 2×Base, 4×Base and so on,
// capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// ReconnectBackoff paces gateway reconnects.
var ReconnectBackoff = Backoff{Base: 2 * time.Second, Max: 2 * time.Minute}

// Delay returns the wait before retry number attempt (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// RateLimit reports whether err is a platform rate limit and, if the
// platform said so, how long to wait. A zero wait falls back to the backoff.
type RateLimit func(err error) (wait time.Duration, limited bool)

// Retry calls send and retries it up to retries times while limited
// classifies the failure as a rate limit. Other errors return at once.
func Retry(ctx context.Context, retries int, b Backoff, limited RateLimit, send func() error) error {
	for attempt := 0; ; attempt++ {
		err := send()
		if err == nil {
			return nil
		}
		wait, ok := limited(err)
		if !ok || attempt >= retries {
			return err
		}
		if wait <= 0 {
			wait = b.Delay(attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Redial keeps a connection loop running. run blocks while connected and
// returns nil on a clean shutdown. Failures are retried with backoff up to
// attempts times; the last error is returned once they are used up.
func Redial(ctx context.Context, platform string, attempts int, b Backoff, run func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = run(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.Delay(attempt)
		log.Printf("%s: disconnected (attempt %d/%d): %v; reconnecting in %v", platform, attempt+1, attempts, err, wait)
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	log.Printf("%s: giving up after %d reconnect attempts", platform, attempts)
	return fmt.Errorf("%s: reconnect: %w", platform, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
