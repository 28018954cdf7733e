package units

import (
	"math"
	"strconv"
	"strings"
)

// ParsePercent reads a relative humidity value such as "45.5" or "45.5%".
// Returns false for anything that is not a number between 0 and 100.
func ParsePercent(value string) (float64, bool) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if value == "" {
		return 0, false
	}
	pct, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, false
	}
	return RoundTenth(pct), true
}

// Sensors report at most one decimal.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
