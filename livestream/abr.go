package livestream

import (
	"sync"
	"time"
)

// Quality bounds and step size for the ABR controller, per spec.md §4.8.
const (
	QualityMin     = 40
	QualityMax     = 90
	QualityDefault = 70
	qualityStep    = 5
)

// Buffer-level thresholds driving the controller, per spec.md §4.8.
const (
	LowBufferThreshold  = 0.10
	HighBufferThreshold = 0.30
)

// MinAdjustInterval is the minimum spacing between quality adjustments
// (spec.md's MIN_INTERVAL), preventing oscillation on noisy feedback.
const MinAdjustInterval = time.Second

// ABRController adjusts a per-(source,client) quality level in
// [QualityMin, QualityMax] from client-reported buffer_level feedback.
// Grounded on the teacher's client/transport.go qualityLevel bucket
// classifier (EWMA-smoothed metrics bucketed into good/moderate/poor),
// adapted from a read-only classification into a closed feedback loop that
// emits the new quality value on every step.
type ABRController struct {
	mu         sync.Mutex
	quality    int
	lastAdjust time.Time
}

// NewABRController constructs a controller at QualityDefault.
func NewABRController() *ABRController {
	return &ABRController{quality: QualityDefault}
}

// Quality returns the current quality level.
func (a *ABRController) Quality() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quality
}

// Observe reports a client's latest buffer_level (fraction in [0,1]) and
// returns the resulting quality level after applying the step function.
// Adjustments are rate-limited to MinAdjustInterval: a report arriving
// sooner than that since the last adjustment leaves quality unchanged.
func (a *ABRController) Observe(bufferLevel float64, now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.lastAdjust.IsZero() && now.Sub(a.lastAdjust) < MinAdjustInterval {
		return a.quality
	}
	switch {
	case bufferLevel < LowBufferThreshold:
		a.quality -= qualityStep
	case bufferLevel > HighBufferThreshold:
		a.quality += qualityStep
	default:
		return a.quality
	}
	if a.quality < QualityMin {
		a.quality = QualityMin
	}
	if a.quality > QualityMax {
		a.quality = QualityMax
	}
	a.lastAdjust = now
	return a.quality
}
