package fingerprint

import (
	"sort"

	"github.com/waveprintlabs/waveprint/pkg/models"
)

// PackHash packs an anchor bin, a target bin, and their frame delta into
// a single 64-bit value: (fAnchor << 32) | (fTarget << 16) | deltaT.
// All three fields must fit 16 bits; no masking is applied.
func PackHash(fAnchor, fTarget, deltaT int) uint64 {
	return uint64(fAnchor)<<32 | uint64(fTarget)<<16 | uint64(deltaT)
}

// UnpackHash recovers the three fields packed by PackHash.
func UnpackHash(h uint64) (fAnchor, fTarget, deltaT int) {
	return int(h>>32) & 0xFFFF, int(h>>16) & 0xFFFF, int(h) & 0xFFFF
}

// Pair walks the constellation and emits one fingerprint per
// anchor/target pair. Anchors are visited in ascending time (stable, so
// equal-time peaks keep extraction order); each anchor pairs with
// subsequent peaks whose frame delta lies inside the target zone, up to
// MaxPairsPerAnchor. The scan past an anchor stops once time ordering
// carries it beyond the zone. Emission order is deterministic: primary
// anchor index, secondary target index.
func Pair(peaks []Peak, songID string, cfg Config) []models.Fingerprint {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	zoneEnd := cfg.TargetZoneStart + cfg.TargetZoneWidth

	var out []models.Fingerprint
	for i := range sorted {
		anchor := sorted[i]
		pairs := 0
		for j := i + 1; j < len(sorted) && pairs < cfg.MaxPairsPerAnchor; j++ {
			dt := sorted[j].Time - anchor.Time
			if dt > zoneEnd {
				break
			}
			if dt < cfg.TargetZoneStart {
				continue
			}
			out = append(out, models.Fingerprint{
				Hash:       PackHash(anchor.Freq, sorted[j].Freq, dt),
				AnchorTime: uint32(anchor.Time),
				SongID:     songID,
			})
			pairs++
		}
	}
	return out
}
