package utils

import (
	"encoding/binary"
	"math"

	"github.com/OneOfOne/xxhash"
)

// ContentHash digests a sample buffer into a 64-bit value. Identical
// audio always digests identically, which lets ingest spot a buffer it
// has already indexed under another song.
func ContentHash(samples []float64) uint64 {
	h := xxhash.New64()
	var buf [8]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
