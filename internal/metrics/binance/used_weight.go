package binancemetrics

import (
	"net/http"
	"strconv"

	"datasetbuilder/internal/metrics"
	"datasetbuilder/logger"
)

var usedWeightHeaders = []struct {
	key    string
	window string
}{
	{"X-MBX-USED-WEIGHT-1M", "1m"},
	{"X-MBX-USED-WEIGHT", "1m"},
}

// ReportUsedWeight inspects Binance used-weight headers and emits a gauge when
// a numeric value is found. It returns the parsed weight and whether a metric
// was recorded.
func ReportUsedWeight(log *logger.Log, header http.Header, component, path string) (float64, bool) {
	if log == nil || header == nil || !metrics.UsedWeightEnabled() {
		return 0, false
	}

	for _, h := range usedWeightHeaders {
		value := header.Get(h.key)
		if value == "" {
			continue
		}

		used, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.WithComponent(component).WithFields(logger.Fields{
				"path":   path,
				"header": h.key,
				"value":  value,
			}).WithError(err).Debug("failed to parse used weight header")
			continue
		}

		metrics.EmitMetric(log, component, "used_weight", used, "gauge", logger.Fields{
			"window": h.window,
		})
		return used, true
	}

	return 0, false
}

// WeightUtilisation returns used as a fraction of limit, or zero when the
// limit is unknown.
func WeightUtilisation(used float64, limit int64) float64 {
	if limit <= 0 || used <= 0 {
		return 0
	}
	return used / float64(limit)
}
