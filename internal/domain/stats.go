package domain

import "math"

// ProfileStats holds the denormalized review statistics stored on a profile.
type ProfileStats struct {
	Rating      float64
	ReviewCount int
}

// NextProfileStats returns the statistics after adding one review with rating
// added to a profile whose current reviews carry existing ratings. The count
// advances from prevCount, not from len(existing).
func NextProfileStats(prevCount int, existing []int, added int) ProfileStats {
	sum := added
	for _, r := range existing {
		sum += r
	}
	return ProfileStats{
		Rating:      RoundToOneDecimal(float64(sum) / float64(len(existing)+1)),
		ReviewCount: prevCount + 1,
	}
}

// RecomputeProfileStats derives statistics from the full set of ratings.
func RecomputeProfileStats(ratings []int) ProfileStats {
	if len(ratings) == 0 {
		return ProfileStats{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return ProfileStats{
		Rating:      RoundToOneDecimal(float64(sum) / float64(len(ratings))),
		ReviewCount: len(ratings),
	}
}

// RoundToOneDecimal rounds half away from zero to one fractional digit.
func RoundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
