package engine

import "math"

// flattenSlab converts an int32 accumulation slab (each channel contributes
// a sample pre-scaled by 32768 for headroom, see channel.interpolate) down
// to clipped 16-bit PCM.
func flattenSlab(slab []int32, out []int16) {
	for i, v := range slab {
		s := v / 32768
		if s > math.MaxInt16 {
			s = math.MaxInt16
		}
		if s < math.MinInt16 {
			s = math.MinInt16
		}
		out[i] = int16(s)
	}
}
