package service

import (
	"errors"
	"fmt"
)

// ErrUnknownTimeBucket is returned when a reminder bucket key is not in the catalog.
var ErrUnknownTimeBucket = errors.New("unknown time-of-day bucket")

// DefaultTimeBucket is used when the caller does not pick a bucket.
const DefaultTimeBucket = "mid-morning"

// timeBucket pairs a named time-of-day window with its reminder hour.
type timeBucket struct {
	Key  string
	Hour int
}

// timeBuckets is the canonical ordered catalog of reminder windows.
// Keep keys stable because clients persist them.
var timeBuckets = []timeBucket{
	{Key: "early-morning", Hour: 6},
	{Key: "mid-morning", Hour: 8},
	{Key: "lunch", Hour: 12},
	{Key: "early-afternoon", Hour: 13},
	{Key: "afternoon", Hour: 15},
	{Key: "after-work", Hour: 17},
	{Key: "bedtime", Hour: 21},
}

// TimeBucketKeys returns the bucket keys in catalog order.
func TimeBucketKeys() []string {
	keys := make([]string, 0, len(timeBuckets))
	for _, bucket := range timeBuckets {
		keys = append(keys, bucket.Key)
	}
	return keys
}

// TimeBucketHour resolves a bucket key to its hour of day.
// An empty key falls back to DefaultTimeBucket; an unknown key is a caller error.
func TimeBucketHour(key string) (int, error) {
	if key == "" {
		key = DefaultTimeBucket
	}

	for _, bucket := range timeBuckets {
		if bucket.Key == key {
			return bucket.Hour, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownTimeBucket, key)
}
