// Package util contains misc internal utilities.
package util

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// Clamp limits a value to the range [low, high]
func Clamp(input, low, high float64) float64 {
	return math.Min(math.Max(input, low), high)
}

// ClampInt is Clamp for ints
func ClampInt(input, low, high int) int {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
// without the truncation of time.Duration(secs)*time.Second
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * 1e9))
}

// AllElementsNumbers returns true if every rune in s is a digit or a decimal point
func AllElementsNumbers(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
