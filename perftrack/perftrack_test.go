package perftrack

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerBasics(t *testing.T) {
	assert := assert.New(t)

	tr := NewTracker()

	// never read before first write: unknown sources get the initial value
	assert.Equal(InitialAccuracy, tr.Accuracy("rule-based"))

	tr.Record("rule-based", true, 100)
	snap := tr.Snapshot("rule-based")
	assert.Equal(int64(1), snap.TotalCalls)
	assert.Equal(int64(1), snap.SuccessfulCalls)
	assert.Equal(float64(100), snap.AverageResponseTimeMs)
	assert.Equal(InitialAccuracy, snap.AccuracyScore)
	assert.False(snap.LastUpdated.IsZero())

	// latency blend: new = (old + latency) / 2
	tr.Record("rule-based", true, 200)
	snap = tr.Snapshot("rule-based")
	assert.Equal(float64(150), snap.AverageResponseTimeMs)

	// failures count calls but do not touch the latency blend
	tr.Record("rule-based", false, 9999)
	snap = tr.Snapshot("rule-based")
	assert.Equal(int64(3), snap.TotalCalls)
	assert.Equal(int64(2), snap.SuccessfulCalls)
	assert.Equal(float64(150), snap.AverageResponseTimeMs)
}

func TestTrackerSetAccuracy(t *testing.T) {
	assert := assert.New(t)

	tr := NewTracker()
	assert.NoError(tr.SetAccuracy("perspective", 0.95))
	assert.Equal(0.95, tr.Accuracy("perspective"))

	assert.Error(tr.SetAccuracy("perspective", 1.5))
	assert.Error(tr.SetAccuracy("perspective", -0.1))
	assert.Equal(0.95, tr.Accuracy("perspective"))
}

func TestTrackerConcurrent(t *testing.T) {
	assert := assert.New(t)

	tr := NewTracker()

	// hammer two sources from several goroutines; run with -race
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.Record("a", true, 10)
				tr.Record("b", j%2 == 0, 20)
				_ = tr.Accuracy("a")
			}
		}()
	}
	wg.Wait()

	assert.Equal(int64(200), tr.Snapshot("a").TotalCalls)
	assert.Equal(int64(200), tr.Snapshot("b").TotalCalls)
	assert.Equal(int64(100), tr.Snapshot("b").SuccessfulCalls)
	assert.Len(tr.All(), 2)
}
