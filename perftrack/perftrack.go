// Package perftrack keeps per-source rolling call statistics, used by the
// consensus scorer as weight multipliers. Records are heuristic state: updates
// are per-source and lock-free at the map level, and concurrent assessments
// racing on the same source are an accepted approximation.
package perftrack

import (
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// accuracy every source starts with, before any external calibration
const InitialAccuracy = 0.8

// Record holds rolling stats for one source. Fields are guarded by the
// per-record mutex; there is deliberately no store-wide lock.
type Record struct {
	mu sync.Mutex

	TotalCalls            int64
	SuccessfulCalls       int64
	AverageResponseTimeMs float64
	AccuracyScore         float64
	LastUpdated           time.Time
}

// Snapshot is a copy of a Record safe to hand out of the package.
type Snapshot struct {
	TotalCalls            int64     `json:"totalCalls"`
	SuccessfulCalls       int64     `json:"successfulCalls"`
	AverageResponseTimeMs float64   `json:"averageResponseTimeMs"`
	AccuracyScore         float64   `json:"accuracyScore"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

type Tracker struct {
	records *xsync.MapOf[string, *Record]
}

func NewTracker() *Tracker {
	return &Tracker{
		records: xsync.NewMapOf[string, *Record](),
	}
}

func (t *Tracker) record(source string) *Record {
	rec, _ := t.records.LoadOrCompute(source, func() *Record {
		return &Record{AccuracyScore: InitialAccuracy}
	})
	return rec
}

// Record notes the outcome of one source call. On success the latency feeds a
// simple blend: new = (old + latency) / 2.
func (t *Tracker) Record(source string, succeeded bool, latencyMs int64) {
	rec := t.record(source)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.TotalCalls++
	if succeeded {
		rec.SuccessfulCalls++
		if rec.AverageResponseTimeMs == 0 {
			rec.AverageResponseTimeMs = float64(latencyMs)
		} else {
			rec.AverageResponseTimeMs = (rec.AverageResponseTimeMs + float64(latencyMs)) / 2
		}
	}
	rec.LastUpdated = time.Now()
}

// Accuracy returns the source's accuracy multiplier, in [0,1]. Unknown
// sources report the initial value, so the scorer never reads a zero weight.
func (t *Tracker) Accuracy(source string) float64 {
	rec, ok := t.records.Load(source)
	if !ok {
		return InitialAccuracy
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.AccuracyScore
}

// SetAccuracy is the external calibration hook. There is no internal feedback
// loop from decision outcomes; callers with ground truth feed it here.
func (t *Tracker) SetAccuracy(source string, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("accuracy score out of range [0,1]: %f", score)
	}
	rec := t.record(source)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.AccuracyScore = score
	rec.LastUpdated = time.Now()
	return nil
}

// Snapshot returns a copy of one source's record.
func (t *Tracker) Snapshot(source string) Snapshot {
	rec := t.record(source)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Snapshot{
		TotalCalls:            rec.TotalCalls,
		SuccessfulCalls:       rec.SuccessfulCalls,
		AverageResponseTimeMs: rec.AverageResponseTimeMs,
		AccuracyScore:         rec.AccuracyScore,
		LastUpdated:           rec.LastUpdated,
	}
}

// All returns snapshots for every tracked source.
func (t *Tracker) All() map[string]Snapshot {
	out := make(map[string]Snapshot)
	t.records.Range(func(name string, _ *Record) bool {
		out[name] = t.Snapshot(name)
		return true
	})
	return out
}
