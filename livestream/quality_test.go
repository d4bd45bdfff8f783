package livestream

import "testing"

func TestClassifyQuality(t *testing.T) {
	cases := []struct {
		bufferLevel, dropRate float64
		want                  QualityBucket
	}{
		{0.5, 0.0, QualityGood},
		{0.2, 0.0, QualityModerate},
		{0.5, 0.02, QualityModerate},
		{0.05, 0.0, QualityPoor},
		{0.5, 0.10, QualityPoor},
	}
	for _, c := range cases {
		if got := ClassifyQuality(c.bufferLevel, c.dropRate); got != c.want {
			t.Errorf("ClassifyQuality(%v,%v) = %v, want %v", c.bufferLevel, c.dropRate, got, c.want)
		}
	}
}
