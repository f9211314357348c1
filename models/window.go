package models

import "time"

// Window is the [Start, End] millisecond range requested from the exchange.
type Window struct {
	Start int64
	End   int64
}

// NextWindow derives the query window that follows resume. Start is always
// strictly greater than resume so the boundary record is never requested
// again.
func NextWindow(resume int64, length time.Duration) Window {
	start := resume + 1
	if length <= 0 {
		length = 24 * time.Hour
	}
	return Window{
		Start: start,
		End:   start + length.Milliseconds(),
	}
}

func (w Window) StartTime() time.Time {
	return time.UnixMilli(w.Start).UTC()
}

func (w Window) EndTime() time.Time {
	return time.UnixMilli(w.End).UTC()
}
