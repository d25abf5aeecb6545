package lifepower

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("LFP-16S_v1.2 rev3"), "LFP-16S_v1.2 rev3"},
		{[]byte{0xc4, 0xdc, 'E', 'G', '4', 0xff, 0x0d}, "EG4"},
		{[]byte("a!b@c#d$"), "abcd"},
		{nil, ""},
		{[]byte{0x00, 0x0d}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeText(tt.in))
	}
}
