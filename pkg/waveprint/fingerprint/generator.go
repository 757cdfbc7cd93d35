package fingerprint

import "github.com/waveprintlabs/waveprint/pkg/models"

// Generate runs a sample buffer through the full pipeline: spectrogram,
// peak extraction, pairing. Pass an empty songID for query audio. A
// buffer shorter than one window yields an empty list and no error.
func Generate(samples []float64, songID string, cfg Config) ([]models.Fingerprint, error) {
	spec, err := Spectrogram(samples, cfg)
	if err != nil {
		return nil, err
	}
	peaks := ExtractPeaks(spec, cfg)
	return Pair(peaks, songID, cfg), nil
}
