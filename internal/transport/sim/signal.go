package sim

import (
	"math"
	"time"

	"github.com/goodtune/motioncoach/internal/device"
)

const (
	gravity          = 9.81
	defaultAmplitude = 2.0
)

// Synthesize produces length worth of samples at rate Hz for a movement
// repeating every period. Acceleration oscillates on the z axis around
// gravity; rotation follows on the x axis a quarter cycle ahead.
func Synthesize(length time.Duration, rate int, period time.Duration, amplitude float64) []device.Sample {
	if length <= 0 || rate <= 0 {
		return nil
	}
	if amplitude == 0 {
		amplitude = defaultAmplitude
	}

	interval := time.Second / time.Duration(rate)
	n := int(length / interval)
	samples := make([]device.Sample, n)
	for i := range samples {
		offset := time.Duration(i) * interval
		s := device.Sample{Offset: offset, Accel: [3]float64{0, 0, gravity}}
		if period > 0 {
			phase := 2 * math.Pi * offset.Seconds() / period.Seconds()
			s.Accel[2] += amplitude * math.Sin(phase)
			s.Gyro[0] = amplitude / 2 * math.Cos(phase)
		}
		samples[i] = s
	}
	return samples
}
