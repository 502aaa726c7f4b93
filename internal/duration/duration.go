// Package duration renders tracked work time the way the board UI shows it.
package duration

import (
	"fmt"
	"math"
)

// Format renders whole minutes as "X jam Y menit", dropping a zero part.
// Zero (and negative input) renders as "0 menit".
func Format(minutes int) string {
	if minutes <= 0 {
		return "0 menit"
	}
	hours := minutes / 60
	rest := minutes % 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%d menit", rest)
	case rest == 0:
		return fmt.Sprintf("%d jam", hours)
	default:
		return fmt.Sprintf("%d jam %d menit", hours, rest)
	}
}

// Hours converts minutes to hours rounded half away from zero to two decimals.
func Hours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}
