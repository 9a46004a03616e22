package util

import (
	"strconv"
)

// QueryLimit parses a positive page size, falling back to def and capping at max.
func QueryLimit(s string, def, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
