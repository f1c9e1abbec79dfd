package elastic

import (
	"fmt"
	"sort"
	"time"

	"el-shipper/internal/eventlog"
)

// Separation determines how records are spread over logical indices: one
// index per hour, day or month of the record timestamp, or a single "all"
// index when separation is disabled.
type Separation int

const (
	SeparationHour Separation = iota
	SeparationDay
	SeparationMonth
	SeparationNone
)

// ParseSeparation maps the config value onto a Separation. The empty string
// defaults to hourly, matching config.Load.
func ParseSeparation(s string) (Separation, error) {
	switch s {
	case "", "hour":
		return SeparationHour, nil
	case "day":
		return SeparationDay, nil
	case "month":
		return SeparationMonth, nil
	case "none":
		return SeparationNone, nil
	}
	return 0, fmt.Errorf("unsupported separation '%s'", s)
}

// Key returns the bucket key for a timestamp: yyyyMMddHH, yyyyMMdd, yyyyMM
// or the constant "all".
func (s Separation) Key(t time.Time) string {
	switch s {
	case SeparationHour:
		return t.Format("2006010215")
	case SeparationDay:
		return t.Format("20060102")
	case SeparationMonth:
		return t.Format("200601")
	}
	return "all"
}

type bucket[T eventlog.Item] struct {
	Key     string
	Records []T
}

// partition groups a batch by bucket key, preserving record order within
// each bucket, and returns the buckets in ascending key order.
func partition[T eventlog.Item](records []T, sep Separation) []bucket[T] {
	groups := make(map[string][]T)
	keys := make([]string, 0)
	for _, r := range records {
		k := sep.Key(r.Time())
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Strings(keys)

	out := make([]bucket[T], 0, len(keys))
	for _, k := range keys {
		out = append(out, bucket[T]{Key: k, Records: groups[k]})
	}
	return out
}
