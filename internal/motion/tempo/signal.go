package tempo

import (
	"math"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
)

// minAmplitude is the standard deviation below which a capture is treated
// as still.
const minAmplitude = 1e-3

// cycleOffsets returns the offset of each upward swing of the acceleration
// magnitude through its mean. A hysteresis band of half a standard
// deviation keeps jitter around the mean from counting as a cycle.
func cycleOffsets(samples []device.Sample) []time.Duration {
	if len(samples) < 3 {
		return nil
	}

	mags := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		mags[i] = math.Sqrt(s.Accel[0]*s.Accel[0] + s.Accel[1]*s.Accel[1] + s.Accel[2]*s.Accel[2])
		sum += mags[i]
	}
	mean := sum / float64(len(mags))

	var sq float64
	for _, m := range mags {
		sq += (m - mean) * (m - mean)
	}
	std := math.Sqrt(sq / float64(len(mags)))
	if std < minAmplitude {
		return nil
	}

	band := std / 2
	var offsets []time.Duration
	armed := false
	for i, m := range mags {
		switch {
		case m < mean-band:
			armed = true
		case armed && m > mean+band:
			offsets = append(offsets, samples[i].Offset)
			armed = false
		}
	}
	return offsets
}

// intervals returns the gaps between consecutive offsets.
func intervals(offsets []time.Duration) []time.Duration {
	if len(offsets) < 2 {
		return nil
	}
	out := make([]time.Duration, len(offsets)-1)
	for i := 1; i < len(offsets); i++ {
		out[i-1] = offsets[i] - offsets[i-1]
	}
	return out
}

type spread struct {
	mean, min, max time.Duration
	variation      float64
}

// summarize computes the mean, range and coefficient of variation.
func summarize(values []time.Duration) spread {
	if len(values) == 0 {
		return spread{}
	}

	s := spread{min: values[0], max: values[0]}
	var total float64
	for _, v := range values {
		total += float64(v)
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	mean := total / float64(len(values))
	s.mean = time.Duration(mean)

	if mean > 0 {
		var sq float64
		for _, v := range values {
			d := float64(v) - mean
			sq += d * d
		}
		s.variation = math.Sqrt(sq/float64(len(values))) / mean
	}
	return s
}

func captureDuration(out *device.Output) time.Duration {
	if d := out.Duration(); d > 0 {
		return d
	}
	if n := len(out.Samples); n > 0 {
		return out.Samples[n-1].Offset
	}
	return 0
}
