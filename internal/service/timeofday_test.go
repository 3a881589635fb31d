package service

import (
	"errors"
	"testing"
)

func TestTimeBucketHour(t *testing.T) {
	hour, err := TimeBucketHour("early-morning")
	if err != nil {
		t.Fatalf("TimeBucketHour returned error: %v", err)
	}
	if hour != 6 {
		t.Fatalf("expected hour 6, got %d", hour)
	}

	// 空 key 回退默认时间档
	hour, err = TimeBucketHour("")
	if err != nil {
		t.Fatalf("TimeBucketHour returned error for empty key: %v", err)
	}
	if hour != 8 {
		t.Fatalf("expected default mid-morning hour 8, got %d", hour)
	}

	if _, err := TimeBucketHour("midnight"); !errors.Is(err, ErrUnknownTimeBucket) {
		t.Fatalf("expected ErrUnknownTimeBucket, got %v", err)
	}
}

func TestTimeBucketKeysOrder(t *testing.T) {
	keys := TimeBucketKeys()
	want := []string{"early-morning", "mid-morning", "lunch", "early-afternoon", "afternoon", "after-work", "bedtime"}

	if len(keys) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(keys))
	}
	for i, key := range want {
		if keys[i] != key {
			t.Fatalf("bucket %d: expected %s, got %s", i, key, keys[i])
		}
	}
}
