package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasetbuilder/internal/binance"
)

type recorder struct {
	events []string
}

func (r *recorder) sleeper() Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		r.events = append(r.events, "sleep "+d.String())
		return ctx.Err()
	}
}

func (r *recorder) fetcher(err error) binance.Fetcher {
	return binance.FetcherFunc(func(ctx context.Context, req binance.Request) ([]json.RawMessage, error) {
		r.events = append(r.events, "fetch "+req.Path)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{json.RawMessage(`{}`)}, nil
	})
}

func TestWrapSleepsBeforeAndAfter(t *testing.T) {
	rec := &recorder{}
	f := WrapWithSleeper(rec.fetcher(nil), 2*time.Second, rec.sleeper())

	records, err := f.Fetch(context.Background(), binance.Request{Path: "/fapi/v1/fundingRate"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []string{"sleep 2s", "fetch /fapi/v1/fundingRate", "sleep 2s"}, rec.events)
}

func TestWrapSleepsAfterFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	f := WrapWithSleeper(rec.fetcher(boom), time.Second, rec.sleeper())

	_, err := f.Fetch(context.Background(), binance.Request{Path: "/x"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"sleep 1s", "fetch /x", "sleep 1s"}, rec.events)
}

func TestWrapCancelledBeforeFetch(t *testing.T) {
	rec := &recorder{}
	f := WrapWithSleeper(rec.fetcher(nil), time.Second, rec.sleeper())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, binance.Request{Path: "/x"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"sleep 1s"}, rec.events)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepWaits(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.NoError(t, Sleep(context.Background(), 0))
}
