// Package version implements the package version value type and its total
// ordering. Comparison follows the alpm rules: epoch numerically, then pkgver
// segment by segment, then pkgrel numerically. Segment comparison treats
// numeric runs numerically so 1.10 sorts after 1.9.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed package version: [epoch:]pkgver-pkgrel.
type Version struct {
	Epoch  int
	Pkgver string
	Pkgrel int
}

// Parse parses "[epoch:]pkgver-pkgrel". A missing pkgrel defaults to 1.
func Parse(s string) (Version, error) {
	v := Version{Pkgrel: 1}
	if s == "" {
		return v, fmt.Errorf("empty version string")
	}
	rest := s
	if idx := strings.Index(rest, ":"); idx >= 0 {
		epoch, err := strconv.Atoi(rest[:idx])
		if err != nil || epoch < 0 {
			return v, fmt.Errorf("invalid epoch in %q", s)
		}
		v.Epoch = epoch
		rest = rest[idx+1:]
	}
	if idx := strings.LastIndex(rest, "-"); idx >= 0 {
		rel, err := strconv.Atoi(rest[idx+1:])
		if err != nil || rel < 1 {
			return v, fmt.Errorf("invalid pkgrel in %q", s)
		}
		v.Pkgrel = rel
		rest = rest[:idx]
	}
	if rest == "" {
		return v, fmt.Errorf("missing pkgver in %q", s)
	}
	v.Pkgver = rest
	return v, nil
}

// MustParse is Parse for test fixtures and constants; panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String serializes the version, omitting a zero epoch.
func (v Version) String() string {
	if v.Epoch > 0 {
		return fmt.Sprintf("%d:%s-%d", v.Epoch, v.Pkgver, v.Pkgrel)
	}
	return fmt.Sprintf("%s-%d", v.Pkgver, v.Pkgrel)
}

// IsZero reports whether the version was never populated.
func (v Version) IsZero() bool { return v.Pkgver == "" }

// Compare returns -1, 0 or 1 ordering v against other. An absent epoch
// compares equal to epoch zero.
func (v Version) Compare(other Version) int {
	if v.Epoch != other.Epoch {
		if v.Epoch < other.Epoch {
			return -1
		}
		return 1
	}
	if c := pkgvercmp(v.Pkgver, other.Pkgver); c != 0 {
		return c
	}
	switch {
	case v.Pkgrel < other.Pkgrel:
		return -1
	case v.Pkgrel > other.Pkgrel:
		return 1
	}
	return 0
}

// Equal reports exact equality under Compare semantics.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// Less reports strict ordering under Compare semantics.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

// pkgvercmp compares two pkgver strings the way alpm's vercmp does:
// alternating alphanumeric segments, numeric segments compared as integers,
// a numeric segment always newer than an alphabetic one, and a trailing
// alphabetic segment older than its absence (1.0a < 1.0 < 1.0.1).
func pkgvercmp(a, b string) int {
	if a == b {
		return 0
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}

		si, sj := i, j
		numeric := isDigit(a[i])
		if numeric {
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
		} else {
			for i < len(a) && isAlpha(a[i]) {
				i++
			}
			for j < len(b) && isAlpha(b[j]) {
				j++
			}
		}
		segA, segB := a[si:i], b[sj:j]

		// segB empty means the segments differ in type; numeric wins.
		if segB == "" {
			if numeric {
				return 1
			}
			return -1
		}

		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}
	}

	switch {
	case i >= len(a) && j >= len(b):
		return 0
	case i >= len(a):
		if isAlpha(b[j]) {
			return 1
		}
		return -1
	default:
		if isAlpha(a[i]) {
			return -1
		}
		return 1
	}
}
