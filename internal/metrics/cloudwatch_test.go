package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"datasetbuilder/logger"
)

type capturedBatches struct {
	batches [][]cwtypes.MetricDatum
}

func (c *capturedBatches) publish(_ context.Context, _ *cloudWatchState, data []cwtypes.MetricDatum) {
	copyData := make([]cwtypes.MetricDatum, len(data))
	copy(copyData, data)
	c.batches = append(c.batches, copyData)
}

func setupPublishTest(t *testing.T, base time.Time) *capturedBatches {
	t.Helper()

	prevState := cwState.Load()
	cwState.Store(&cloudWatchState{client: &cloudwatch.Client{}, namespace: "Test"})
	t.Cleanup(func() { cwState.Store(prevState) })

	resetMetricPublishTimes()
	t.Cleanup(resetMetricPublishTimes)

	originalInterval := cloudWatchPublishInterval
	cloudWatchPublishInterval = 50 * time.Millisecond
	t.Cleanup(func() { cloudWatchPublishInterval = originalInterval })

	timeNow = func() time.Time { return base }
	t.Cleanup(func() { timeNow = time.Now })

	captured := &capturedBatches{}
	publishMetricsFunc = captured.publish
	t.Cleanup(func() { publishMetricsFunc = publishMetrics })
	return captured
}

func TestPublishMetricDatumThrottlesToInterval(t *testing.T) {
	baseTime := time.Now()
	captured := setupPublishTest(t, baseTime)

	metric := Metric{Component: "sync", Name: "records_appended", Timestamp: baseTime, Fields: logger.Fields{"series": "funding_rate"}}
	publishMetricDatum(metric, 1)

	timeNow = func() time.Time { return baseTime.Add(25 * time.Millisecond) }
	publishMetricDatum(metric, 2)

	if len(captured.batches) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(captured.batches))
	}
	datum := captured.batches[0][0]
	if datum.MetricName == nil || *datum.MetricName != "records_appended" {
		t.Fatalf("unexpected metric name: %v", datum.MetricName)
	}
	if datum.Value == nil || *datum.Value != 1 {
		t.Fatalf("unexpected metric value: %v", datum.Value)
	}
	if len(datum.Dimensions) != 2 {
		t.Fatalf("expected component and series dimensions, got %d", len(datum.Dimensions))
	}
}

func TestPublishMetricDatumAllowsAfterInterval(t *testing.T) {
	baseTime := time.Now()
	captured := setupPublishTest(t, baseTime)

	metric := Metric{Component: "sync", Name: "records_appended", Timestamp: baseTime}
	publishMetricDatum(metric, 1)

	timeNow = func() time.Time { return baseTime.Add(75 * time.Millisecond) }
	publishMetricDatum(metric, 2)

	if len(captured.batches) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(captured.batches))
	}
	if v := captured.batches[1][0].Value; v == nil || *v != 2 {
		t.Fatalf("unexpected metric value: %v", v)
	}
}

func TestPublishMetricDatumSeparatesSeries(t *testing.T) {
	baseTime := time.Now()
	captured := setupPublishTest(t, baseTime)

	publishMetricDatum(Metric{Component: "sync", Name: "cycles", Fields: logger.Fields{"series": "funding_rate"}}, 1)
	publishMetricDatum(Metric{Component: "sync", Name: "cycles", Fields: logger.Fields{"series": "open_interest"}}, 1)

	if len(captured.batches) != 2 {
		t.Fatalf("expected one publish per series, got %d", len(captured.batches))
	}
}

func TestPublishMetricDatumUnitFromFields(t *testing.T) {
	baseTime := time.Now()
	captured := setupPublishTest(t, baseTime)

	publishMetricDatum(Metric{Component: "binance_client", Name: "request_latency", Type: "gauge", Fields: logger.Fields{"unit": "milliseconds"}}, 12)

	if len(captured.batches) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(captured.batches))
	}
	if unit := captured.batches[0][0].Unit; unit != cwtypes.StandardUnitMilliseconds {
		t.Fatalf("unexpected unit: %s", unit)
	}
}

func TestPublishMetricDatumWithoutClient(t *testing.T) {
	baseTime := time.Now()
	captured := setupPublishTest(t, baseTime)
	cwState.Store(&cloudWatchState{namespace: "Test"})

	publishMetricDatum(Metric{Component: "sync", Name: "cycles"}, 1)

	if len(captured.batches) != 0 {
		t.Fatalf("expected no publish without a client, got %d", len(captured.batches))
	}
}
