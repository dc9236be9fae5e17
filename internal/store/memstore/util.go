package memstore

import "time"

func secToTime(epochSec int64) time.Time {
	return time.Unix(epochSec, 0).UTC()
}
