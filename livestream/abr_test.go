package livestream

import (
	"testing"
	"time"
)

// TestScenarioBufferStarvationDecreasesQuality mirrors spec scenario S4:
// reporting buffer_level=0.02 four times at 1s intervals decreases Q by
// step x4 from the default.
func TestScenarioBufferStarvationDecreasesQuality(t *testing.T) {
	a := NewABRController()
	now := time.Now()
	for i := 0; i < 4; i++ {
		a.Observe(0.02, now)
		now = now.Add(MinAdjustInterval)
	}
	want := QualityDefault - 4*qualityStep
	if got := a.Quality(); got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestQualityClampsAtMin(t *testing.T) {
	a := NewABRController()
	now := time.Now()
	for i := 0; i < 20; i++ {
		a.Observe(0.0, now)
		now = now.Add(MinAdjustInterval)
	}
	if got := a.Quality(); got != QualityMin {
		t.Fatalf("got %d want %d", got, QualityMin)
	}
}

func TestQualityClampsAtMax(t *testing.T) {
	a := NewABRController()
	now := time.Now()
	for i := 0; i < 20; i++ {
		a.Observe(1.0, now)
		now = now.Add(MinAdjustInterval)
	}
	if got := a.Quality(); got != QualityMax {
		t.Fatalf("got %d want %d", got, QualityMax)
	}
}

func TestAdjustmentsRateLimited(t *testing.T) {
	a := NewABRController()
	now := time.Now()
	a.Observe(0.0, now)
	if got := a.Quality(); got != QualityDefault-qualityStep {
		t.Fatalf("first observe should step down, got %d", got)
	}
	a.Observe(0.0, now.Add(100*time.Millisecond))
	if got := a.Quality(); got != QualityDefault-qualityStep {
		t.Fatalf("rate-limited observe should not step again, got %d", got)
	}
}

func TestMidBandLeavesQualityUnchanged(t *testing.T) {
	a := NewABRController()
	now := time.Now()
	a.Observe(0.20, now)
	if got := a.Quality(); got != QualityDefault {
		t.Fatalf("mid-band buffer_level should not change quality, got %d", got)
	}
}
