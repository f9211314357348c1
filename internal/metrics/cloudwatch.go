package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"datasetbuilder/logger"
)

// metricPublisher is the subset of the CloudWatch client used here.
type metricPublisher interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type cloudWatchState struct {
	client    metricPublisher
	namespace string
	region    string
}

var cwState atomic.Pointer[cloudWatchState]

const publishTimeout = 10 * time.Second

var (
	// cloudWatchPublishInterval bounds how often the same metric series is sent.
	cloudWatchPublishInterval = 10 * time.Second
	timeNow                   = time.Now
	publishMetricsFunc        = publishMetrics

	metricPublishMu    sync.Mutex
	metricPublishTimes = make(map[string]time.Time)
)

func init() {
	cwState.Store(&cloudWatchState{namespace: "DatasetBuilder"})
}

// InitCloudWatch initialises the CloudWatch client using the provided region and
// namespace. When the AWS configuration cannot be loaded a warning is logged
// and publishing stays disabled.
func InitCloudWatch(ctx context.Context, region, namespace string) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	state := cloudWatchState{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: "DatasetBuilder",
		region:    cfg.Region,
	}
	if namespace != "" {
		state.namespace = namespace
	}
	cwState.Store(&state)

	log.WithFields(logger.Fields{
		"region":    state.region,
		"namespace": state.namespace,
	}).Info("initialized CloudWatch client")
}

func publishMetricDatum(metric Metric, value float64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(metric.Component)}}
	for k, v := range metric.Fields {
		if k == "unit" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	unit := cwtypes.StandardUnitCount
	if metric.Type == "gauge" {
		unit = cwtypes.StandardUnitNone
	}
	if raw, ok := metric.Fields["unit"].(string); ok && strings.EqualFold(raw, "milliseconds") {
		unit = cwtypes.StandardUnitMilliseconds
	}

	if !allowPublish(seriesKey(metric.Component, metric.Name, dims)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	publishMetricsFunc(ctx, state, []cwtypes.MetricDatum{{
		MetricName: aws.String(metric.Name),
		Dimensions: dims,
		Timestamp:  aws.Time(metric.Timestamp),
		Unit:       unit,
		Value:      aws.Float64(value),
	}})
}

func publishMetrics(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
	if len(data) == 0 {
		return
	}

	log := logger.GetLogger().WithComponent("cloudwatch")
	if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}
	log.WithFields(logger.Fields{"metrics": strings.Join(names, ",")}).Debug("published metrics to CloudWatch")
}

func seriesKey(component, name string, dims []cwtypes.Dimension) string {
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, aws.ToString(d.Name)+"="+aws.ToString(d.Value))
	}
	sort.Strings(parts)
	return component + "/" + name + "{" + strings.Join(parts, ",") + "}"
}

func allowPublish(key string) bool {
	now := timeNow()

	metricPublishMu.Lock()
	defer metricPublishMu.Unlock()

	if last, ok := metricPublishTimes[key]; ok && now.Sub(last) < cloudWatchPublishInterval {
		return false
	}
	metricPublishTimes[key] = now
	return true
}

func resetMetricPublishTimes() {
	metricPublishMu.Lock()
	metricPublishTimes = make(map[string]time.Time)
	metricPublishMu.Unlock()
}
