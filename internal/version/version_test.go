package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"1.0-1", Version{Epoch: 0, Pkgver: "1.0", Pkgrel: 1}},
		{"2:4.18.1-2", Version{Epoch: 2, Pkgver: "4.18.1", Pkgrel: 2}},
		{"20240101", Version{Epoch: 0, Pkgver: "20240101", Pkgrel: 1}},
		{"1.2.3_git-5", Version{Epoch: 0, Pkgver: "1.2.3_git", Pkgrel: 5}},
		{"0:1.0-1", Version{Epoch: 0, Pkgver: "1.0", Pkgrel: 1}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "x:1.0-1", "-1:1.0-1", "1.0-0", "1.0-x", "2:-1"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "1.0-1", Version{Pkgver: "1.0", Pkgrel: 1}.String())
	assert.Equal(t, "3:2.5-4", Version{Epoch: 3, Pkgver: "2.5", Pkgrel: 4}.String())
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"1.0-1", "2:4.18.1-2", "1.2.3_git-5"} {
		v := MustParse(s)
		assert.Equal(t, s, v.String())
	}
}

// TestCompare covers the alpm ordering rules, in particular multi-digit
// numeric segments that break under lexical comparison.
func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0-1", "1.0-1", 0},
		{"1.0-1", "1.0-2", -1},
		{"1.0-2", "1.0-1", 1},
		{"1.9-1", "1.10-1", -1},
		{"1.10-1", "1.9-1", 1},
		{"1.0-1", "1.0.1-1", -1},
		{"1.0a-1", "1.0-1", -1},
		{"1.0-1", "1.0a-1", 1},
		{"1.0rc1-1", "1.0-1", -1},
		{"2.0-1", "10.0-1", -1},
		{"1.0-1", "2:0.1-1", -1},
		{"1:1.0-1", "1.0-1", 1},
		{"0:1.0-1", "1.0-1", 0},
		{"1.0_git20240101-1", "1.0_git20231231-1", 1},
		{"01.0-1", "1.0-1", 0},
		{"1.a-1", "1.1-1", -1},
	}
	for _, tt := range tests {
		got := MustParse(tt.a).Compare(MustParse(tt.b))
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
		// Ordering must be antisymmetric.
		assert.Equal(t, -tt.want, MustParse(tt.b).Compare(MustParse(tt.a)), "%s vs %s reversed", tt.b, tt.a)
	}
}

func TestEqualTolerantOfEpochZero(t *testing.T) {
	withEpoch := Version{Epoch: 0, Pkgver: "1.0", Pkgrel: 1}
	without := MustParse("1.0-1")
	assert.True(t, withEpoch.Equal(without))
}

func TestLess(t *testing.T) {
	assert.True(t, MustParse("1.0-1").Less(MustParse("1.0-2")))
	assert.False(t, MustParse("1.0-2").Less(MustParse("1.0-2")))
}
