package fingerprint

// Config controls every tunable parameter in the spectrogram, peak
// extraction, pairing, and matching pipeline. Postings written with one
// configuration cannot be matched with another; changing any field
// invalidates an existing index.
type Config struct {
	SampleRate         int       // Hz
	WindowSize         int       // FFT window in samples, must be a power of two
	HopSize            int       // samples between successive frames
	FreqBandEdges      []float64 // Hz, ascending; N edges define N-1 search bands
	PeakNeighborhood   int       // local-maximum radius in frames and bins
	PeakThreshold      float64   // absolute magnitude a peak must exceed
	TargetZoneStart    int       // frames after the anchor where the target zone opens
	TargetZoneWidth    int       // frames the target zone spans past its start
	MaxPairsPerAnchor  int       // pairing fan-out limit per anchor
	MinMatchingHashes  int       // postings required before a song is scored
	MinConfidence      float64   // lowest confidence kept in a ranking
	TimeDeltaTolerance int       // frames of offset jitter absorbed when scoring
}

// DefaultConfig returns the parameters the index format is defined
// against: CD-rate mono input, 4096-sample windows with 75% overlap, and
// ten logarithmically spaced bands between 40 Hz and 5 kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate:         44100,
		WindowSize:         4096,
		HopSize:            1024,
		FreqBandEdges:      []float64{40, 80, 120, 180, 300, 500, 800, 1200, 2000, 3000, 5000},
		PeakNeighborhood:   10,
		PeakThreshold:      0.5,
		TargetZoneStart:    1,
		TargetZoneWidth:    10,
		MaxPairsPerAnchor:  5,
		MinMatchingHashes:  5,
		MinConfidence:      0.1,
		TimeDeltaTolerance: 2,
	}
}

// BinFreq maps a frequency bin index to Hz.
func (c Config) BinFreq(bin int) float64 {
	return float64(bin) * float64(c.SampleRate) / float64(c.WindowSize)
}

// FreqBin maps a frequency in Hz to the nearest bin index.
func (c Config) FreqBin(freq float64) int {
	return int(freq*float64(c.WindowSize)/float64(c.SampleRate) + 0.5)
}
