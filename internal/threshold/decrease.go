package threshold

// Decreased reports whether any of the trailing window samples is strictly
// lower than its predecessor within that window. A breach on a metric that
// recently dropped is treated as recovering.
func Decreased(samples []float64, window int) bool {
	if window <= 0 || len(samples) < 2 {
		return false
	}
	if window > len(samples) {
		window = len(samples)
	}

	tail := samples[len(samples)-window:]
	for i := 1; i < len(tail); i++ {
		if tail[i] < tail[i-1] {
			return true
		}
	}
	return false
}
