package metrics

import "time"

// Window accumulates loss and timing stats across training steps.
type Window struct {
	captions int
	data     time.Duration
	compute  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
}

// Record adds a new step measurement to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.captions += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	total := w.data + w.compute
	if total > 0 {
		snap.CaptionsPerSec = float64(w.captions) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
		snap.AvgLoss = w.lossSum / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	CaptionsPerSec float64
	AvgDataMS      float64
	AvgComputeMS   float64
	AvgLoss        float64
	LastLoss       float64
}
