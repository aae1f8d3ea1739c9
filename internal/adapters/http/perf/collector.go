// Package perf keeps a bounded in-process record of request and storage timings
// for the admin perf endpoint.
package perf

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// Kind distinguishes HTTP requests from key-value storage calls.
type Kind uint8

const (
	KindRequest Kind = iota
	KindStorage
)

// Entry is a single timing sample.
type Entry struct {
	Kind       Kind
	Label      string // "GET /teams/{id}" or "kv.Get"
	StatusCode int    // 0 for storage calls
	DurationMs float64
	At         time.Time
}

// Collector is a fixed-size ring buffer of samples.
// When full, the oldest sample is overwritten. Aggregation happens only in Snapshot.
type Collector struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	total atomic.Int64
}

// NewCollector creates a collector holding at most size samples.
// PRE: size > 0, otherwise DefaultRingSize is used
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{ring: make([]Entry, size)}
}

// Record stores e, overwriting the oldest sample when the buffer is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next = (c.next + 1) % len(c.ring)
	c.mu.Unlock()
	c.total.Add(1)
}

// TotalRecorded returns the number of samples ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.total.Load()
}

// LabelStat aggregates samples sharing a label.
type LabelStat struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	totalMs float64
}

// Snapshot is the aggregated view served to admins.
type Snapshot struct {
	TotalRecorded int64       `json:"totalRecorded"`
	RequestP50Ms  float64     `json:"requestP50Ms"`
	RequestP95Ms  float64     `json:"requestP95Ms"`
	RequestP99Ms  float64     `json:"requestP99Ms"`
	SlowRequests  []LabelStat `json:"slowRequests"`
	SlowStorage   []LabelStat `json:"slowStorage"`
}

// Snapshot aggregates samples recorded at or after since, keeping the topN
// slowest labels of each kind by average duration.
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.ring)
	c.mu.Unlock()

	var durations []float64
	byKind := map[Kind]map[string]*LabelStat{
		KindRequest: {},
		KindStorage: {},
	}
	for _, e := range buf {
		if e.At.IsZero() || e.At.Before(since) {
			continue
		}
		if e.Kind == KindRequest {
			durations = append(durations, e.DurationMs)
		}
		stats := byKind[e.Kind]
		if stats == nil {
			continue
		}
		s, ok := stats[e.Label]
		if !ok {
			s = &LabelStat{Label: e.Label}
			stats[e.Label] = s
		}
		s.Count++
		s.totalMs += e.DurationMs
		s.MaxMs = math.Max(s.MaxMs, e.DurationMs)
	}

	snap := Snapshot{
		TotalRecorded: c.TotalRecorded(),
		SlowRequests:  slowest(byKind[KindRequest], topN),
		SlowStorage:   slowest(byKind[KindStorage], topN),
	}
	if len(durations) > 0 {
		slices.Sort(durations)
		snap.RequestP50Ms = percentile(durations, 50)
		snap.RequestP95Ms = percentile(durations, 95)
		snap.RequestP99Ms = percentile(durations, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func slowest(stats map[string]*LabelStat, n int) []LabelStat {
	list := make([]LabelStat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.totalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b LabelStat) int {
		switch {
		case a.AvgMs > b.AvgMs:
			return -1
		case a.AvgMs < b.AvgMs:
			return 1
		}
		return 0
	})
	if n >= 0 && len(list) > n {
		list = list[:n]
	}
	return list
}
