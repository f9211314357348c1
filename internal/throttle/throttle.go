// Package throttle paces calls to the exchange by sleeping around every fetch.
package throttle

import (
	"context"
	"encoding/json"
	"time"

	"datasetbuilder/internal/binance"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type throttled struct {
	next  binance.Fetcher
	delay time.Duration
	sleep Sleeper
}

// Wrap returns a Fetcher that sleeps delay before calling next and again after
// it returns, whether or not the call failed.
func Wrap(next binance.Fetcher, delay time.Duration) binance.Fetcher {
	return WrapWithSleeper(next, delay, Sleep)
}

// WrapWithSleeper is Wrap with a custom Sleeper.
func WrapWithSleeper(next binance.Fetcher, delay time.Duration, sleep Sleeper) binance.Fetcher {
	if sleep == nil {
		sleep = Sleep
	}
	return &throttled{next: next, delay: delay, sleep: sleep}
}

func (t *throttled) Fetch(ctx context.Context, req binance.Request) ([]json.RawMessage, error) {
	if err := t.sleep(ctx, t.delay); err != nil {
		return nil, err
	}

	records, err := t.next.Fetch(ctx, req)

	if sleepErr := t.sleep(ctx, t.delay); sleepErr != nil && err == nil {
		return nil, sleepErr
	}
	return records, err
}
