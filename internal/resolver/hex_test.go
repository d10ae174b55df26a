package resolver

import "testing"

func TestIsFullHexOID(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", true},
		{"da39a3ee5e6b4b0d3255bfef95601890afd8070", false}, // 39 chars
		{"DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", false}, // uppercase
		{"main", false},
		{"", false},
		{"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true}, // 64 hex (sha256-length)
		{"g123456789012345678901234567890123456789", false},                      // non-hex char
	}
	for _, c := range cases {
		if got := isFullHexOID(c.name); got != c.want {
			t.Errorf("isFullHexOID(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
