package aggregator

import "math/rand"

// appendSample appends d to durations, optionally bounding the slice to
// maxSamples via reservoir sampling (algorithm R). maxSamples <= 0 means
// unbounded, matching the reference aggregator's behavior of retaining
// every sample. seen is the number of samples observed for this edge
// across its whole bucket lifetime (including ones already evicted from
// the slice), so the reservoir stays uniform even as new spans arrive
// across many Ingest calls.
func appendSample(durations []float64, d float64, seen uint64, maxSamples int) []float64 {
	if maxSamples <= 0 || len(durations) < maxSamples {
		return append(durations, d)
	}

	// durations is already at capacity: replace a uniformly random
	// existing sample with probability maxSamples/seen.
	j := rand.Int63n(int64(seen))
	if j < int64(maxSamples) {
		durations[j] = d
	}
	return durations
}
