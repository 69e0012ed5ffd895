package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by mutations that matched no row. Getters return
// (nil, nil) instead.
var ErrNotFound = errors.New("store: not found")

// Event spans are stored as Unix seconds so range comparisons are numeric.
func unixSeconds(t time.Time) int64 {
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
