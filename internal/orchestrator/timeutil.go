package orchestrator

import "time"

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
