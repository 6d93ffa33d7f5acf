// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// Clamp restricts x to the range [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// Uint16SliceToCSV converts a slice of uint16s to CSV formatted data
func Uint16SliceToCSV(us []uint16) string {
	s := make([]string, len(us))
	for i, v := range us {
		s[i] = strconv.Itoa(int(v))
	}

	return strings.Join(s, ",")
}

// CeilDiv divides a by b and rounds up.  b must be positive.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
