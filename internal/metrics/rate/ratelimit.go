package rate

import (
	"net/http"
	"strings"
	"time"

	"datasetbuilder/internal/metrics"
	"datasetbuilder/logger"
)

const component = "binance_client"

// ReportRateLimitExceeded increments the rate limit exceeded counter for the
// given endpoint path.
func ReportRateLimitExceeded(log *logger.Log, path string) {
	fields := logger.Fields{"exchange": "binance", "path": path}
	metrics.EmitMetric(log, component, "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan increments the IP ban counter for the given endpoint path. When
// the exchange message carries the ban expiry it is attached to the log entry.
func ReportIPBan(log *logger.Log, path, msg string) {
	fields := logger.Fields{"exchange": "binance", "path": path}
	metrics.EmitMetric(log, component, "ip_ban", int64(1), "counter", fields)

	entry := log.WithComponent(component).WithFields(fields)
	if until, ok := BannedUntil(msg); ok {
		entry = entry.WithFields(logger.Fields{"banned_until": until.Format(time.RFC3339)})
	}
	entry.Error("ip banned")
}

// detectLimit inspects the status and message returned by Binance and
// determines whether they signal a rate limit exceed or an IP ban.
func detectLimit(status int, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	ipBan = status == http.StatusTeapot || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
	rateLimit = !ipBan && (status == http.StatusTooManyRequests ||
		strings.Contains(lowerMsg, "too many requests") ||
		strings.Contains(lowerMsg, "too much request weight"))
	return
}

// ReportLimit records the appropriate metric when a response signals a rate
// limit or IP ban. It reports whether either was detected.
func ReportLimit(log *logger.Log, status int, path, msg string) bool {
	if log == nil {
		log = logger.GetLogger()
	}
	rateLimit, ipBan := detectLimit(status, msg)
	if ipBan {
		ReportIPBan(log, path, msg)
	}
	if rateLimit {
		ReportRateLimitExceeded(log, path)
	}
	return rateLimit || ipBan
}

// BannedUntil extracts the ban expiry from messages such as
// "Way too much request weight used; IP banned until 1568102400000".
func BannedUntil(msg string) (time.Time, bool) {
	lowerMsg := strings.ToLower(msg)
	idx := strings.Index(lowerMsg, "until")
	if idx < 0 {
		return time.Time{}, false
	}
	nums := extractInts(msg[idx:])
	if len(nums) == 0 || nums[0] <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(nums[0]).UTC(), true
}
