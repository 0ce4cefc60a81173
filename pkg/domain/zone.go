package domain

import "time"

// LocalZoneName is the zone article timestamps are stored in, offset-stripped.
const LocalZoneName = "Asia/Ho_Chi_Minh"

// LocalZone is the storage zone. Falls back to a fixed +07:00 when the host has
// no zoneinfo database; the zone has no daylight saving so the two agree.
var LocalZone = loadLocalZone()

func loadLocalZone() *time.Location {
	loc, err := time.LoadLocation(LocalZoneName)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// Naive keeps the wall-clock fields of t and drops its offset. The result is
// expressed in UTC, which is how naive values are stored.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ToStorageTime converts t into the storage zone and strips the offset.
func ToStorageTime(t time.Time) time.Time {
	return Naive(t.In(LocalZone))
}
