package dispatch

import (
	"fmt"
	"strings"
)

// Mask selects the subset of a request's targets that a dispatch call
// should actually process. Targets outside the mask keep whatever value
// their result slot already has, which is what makes partial retries of
// a previously failed request possible.
type Mask []bool

// NewMask creates a mask of the given size with every bit set to the
// given initial value.
func NewMask(size int, set bool) Mask {
	m := make(Mask, size)
	if set {
		for i := range m {
			m[i] = true
		}
	}
	return m
}

// Set marks the target at index i for processing
func (m Mask) Set(i int) {
	if i >= 0 && i < len(m) {
		m[i] = true
	}
}

// Unset excludes the target at index i from processing
func (m Mask) Unset(i int) {
	if i >= 0 && i < len(m) {
		m[i] = false
	}
}

// IsSet reports whether the target at index i should be processed.
// Indices outside the mask are never set.
func (m Mask) IsSet(i int) bool {
	return i >= 0 && i < len(m) && m[i]
}

// Count returns the number of selected targets
func (m Mask) Count() int {
	n := 0
	for _, set := range m {
		if set {
			n++
		}
	}
	return n
}

// String returns the mask as a bit string, e.g. "1101"
func (m Mask) String() string {
	var sb strings.Builder
	for _, set := range m {
		if set {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return fmt.Sprintf("mask(%s)", sb.String())
}
