package metrics

import (
	"time"

	"datasetbuilder/logger"
)

const syncComponent = "sync"

// ReportSync emits the outcome of one completed series synchronisation.
func ReportSync(log *logger.Log, series string, cycles, appended int, resume int64, elapsed time.Duration) {
	fields := logger.Fields{"series": series}
	EmitMetric(log, syncComponent, "cycles", cycles, "counter", fields)
	EmitMetric(log, syncComponent, "records_appended", appended, "counter", fields)
	EmitMetric(log, syncComponent, "resume_point", resume, "gauge", fields)
	EmitMetric(log, syncComponent, "sync_duration", elapsed.Milliseconds(), "gauge", logger.Fields{
		"series": series,
		"unit":   "milliseconds",
	})
}

// ReportSyncFailure counts a series synchronisation that stopped with an error.
func ReportSyncFailure(log *logger.Log, series string, err error) {
	if log == nil {
		log = logger.GetLogger()
	}
	EmitMetric(log, syncComponent, "sync_failures", 1, "counter", logger.Fields{"series": series})
	log.WithComponent(syncComponent).WithSeries(series).WithError(err).Error("series sync failed")
}
