package workflow

// MaxRegenerations bounds the rejections of a single review cycle.
const MaxRegenerations = 3

// CanReject reports whether a review cycle whose regenerate counter is
// counter may still be rejected.
func CanReject(counter int) bool {
	return counter < MaxRegenerations
}

// RemainingRegenerations returns how many rejections are left.
func RemainingRegenerations(counter int) int {
	if counter >= MaxRegenerations {
		return 0
	}
	if counter < 0 {
		return MaxRegenerations
	}
	return MaxRegenerations - counter
}
