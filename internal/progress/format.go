package progress

import (
	"fmt"
	"math"
)

// FormatTime renders milliseconds as m:ss. NaN, infinite and negative inputs render as 0:00.
func FormatTime(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return "0:00"
	}
	total := int64(math.Floor(ms / 1000))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Format is [FormatTime] for integer milliseconds.
func Format(ms int) string {
	return FormatTime(float64(ms))
}

// FractionAt maps a pointer offset on a bar of width px to [0, 1].
func FractionAt(offset, width float64) float64 {
	if width <= 0 || math.IsNaN(offset) {
		return 0
	}
	return math.Min(math.Max(offset/width, 0), 1)
}
