package livestream

// QualityBucket is an advisory classification of a subscriber's current
// stream health, surfaced for operator visibility only — it never
// overrides the ABRController step logic in abr.go.
type QualityBucket string

const (
	QualityGood     QualityBucket = "good"
	QualityModerate QualityBucket = "moderate"
	QualityPoor     QualityBucket = "poor"
)

// ClassifyQuality buckets a subscriber's recent feedback into
// good/moderate/poor. Grounded on the teacher's client-side qualityLevel
// heuristic (client/transport.go): loss/RTT/jitter/drop-rate thresholds,
// generalized here to LiveStream's buffer_level + drop-rate signals.
func ClassifyQuality(bufferLevel, dropRate float64) QualityBucket {
	if bufferLevel < LowBufferThreshold || dropRate >= 0.05 {
		return QualityPoor
	}
	if bufferLevel < HighBufferThreshold || dropRate >= 0.01 {
		return QualityModerate
	}
	return QualityGood
}
