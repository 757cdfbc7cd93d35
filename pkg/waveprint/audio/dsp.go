package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedRate reports a sample rate the resampler cannot reduce
// to the target by integer decimation.
var ErrUnsupportedRate = errors.New("audio: unsupported sample rate")

// Normalize scales the buffer so its peak absolute amplitude is 1. A
// silent buffer is returned unchanged. The fixed peak threshold downstream
// assumes unit-peak input.
func Normalize(samples []float64) []float64 {
	max := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > max {
			max = a
		}
	}
	if max == 0 {
		return samples
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / max
	}
	return out
}

// LowPassFilter applies a first-order RC filter attenuating content
// above the cutoff frequency.
func LowPassFilter(cutoff, sampleRate float64, samples []float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	out := make([]float64, len(samples))
	prev := 0.0
	for i, x := range samples {
		if i == 0 {
			out[i] = x * alpha
		} else {
			out[i] = alpha*x + (1-alpha)*prev
		}
		prev = out[i]
	}
	return out
}

// Resample reduces the buffer from its source rate to the target rate by
// block averaging, after low-pass preconditioning at the target Nyquist.
// The source rate must be an integer multiple of the target.
func Resample(samples []float64, sourceRate, targetRate int) ([]float64, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrUnsupportedRate, sourceRate, targetRate)
	}
	if sourceRate == targetRate {
		return samples, nil
	}
	if sourceRate < targetRate || sourceRate%targetRate != 0 {
		return nil, fmt.Errorf("%w: %d is not an integer multiple of %d", ErrUnsupportedRate, sourceRate, targetRate)
	}

	filtered := LowPassFilter(float64(targetRate)/2, float64(sourceRate), samples)

	ratio := sourceRate / targetRate
	out := make([]float64, 0, len(filtered)/ratio)
	for i := 0; i+ratio <= len(filtered); i += ratio {
		sum := 0.0
		for j := i; j < i+ratio; j++ {
			sum += filtered[j]
		}
		out = append(out, sum/float64(ratio))
	}
	return out, nil
}
