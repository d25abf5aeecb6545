package lifepower

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusFrame builds a synthetic status response: 4 header bytes, the
// given groups as <id> <count> <values...>, and the 0x0d terminator.
func statusFrame(groups [][]uint16) []byte {
	buf := []byte{0x7e, 0x01, 0x01, 0x00}
	for id, vals := range groups {
		buf = append(buf, byte(id), byte(len(vals)))
		for _, v := range vals {
			b := make([]byte, 2)
			binary.BigEndian.PutUint16(b, v)
			buf = append(buf, b...)
		}
	}
	return append(buf, Terminator)
}

// tenGroups pads groups with empty ones up to the protocol's fixed count.
func tenGroups(groups ...[]uint16) [][]uint16 {
	for len(groups) < groupCount {
		groups = append(groups, []uint16{})
	}
	return groups
}

func TestDecodeGroups(t *testing.T) {
	in := tenGroups(
		[]uint16{0x0a0b, 0x0c0d},
		[]uint16{29000},
		[]uint16{5000},
	)
	groups, err := decodeGroups(statusFrame(in))
	require.NoError(t, err)
	require.Len(t, groups, groupCount)
	assert.Equal(t, []uint16{0x0a0b, 0x0c0d}, groups[0])
	assert.Equal(t, []uint16{29000}, groups[1])
	assert.Equal(t, []uint16{5000}, groups[2])
	for i := 3; i < groupCount; i++ {
		assert.Empty(t, groups[i])
	}
}

func TestDecodeGroupsIdempotent(t *testing.T) {
	buf := statusFrame(tenGroups([]uint16{1, 2, 3}, []uint16{30000}))
	a, err := decodeGroups(buf)
	require.NoError(t, err)
	b, err := decodeGroups(buf)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeGroupsTruncated(t *testing.T) {
	buf := statusFrame(tenGroups([]uint16{1, 2, 3}))
	// group 0 now declares more values than the buffer holds
	buf[5] = 60
	_, err := decodeGroups(buf)
	require.Error(t, err)
	fe, ok := err.(*FrameError)
	require.True(t, ok)
	assert.Equal(t, 0, fe.Group)
}

func TestDecodeGroupsMissingGroup(t *testing.T) {
	// only 9 groups present
	groups := tenGroups([]uint16{1})[:groupCount-1]
	buf := []byte{0x7e, 0x01, 0x01, 0x00}
	for id, vals := range groups {
		buf = append(buf, byte(id), byte(len(vals)))
		for _, v := range vals {
			b := make([]byte, 2)
			binary.BigEndian.PutUint16(b, v)
			buf = append(buf, b...)
		}
	}
	_, err := decodeGroups(buf)
	require.Error(t, err)
	fe, ok := err.(*FrameError)
	require.True(t, ok)
	assert.Equal(t, groupCount-1, fe.Group)
}

func TestDecodeGroupsEmptyBuffer(t *testing.T) {
	_, err := decodeGroups(nil)
	require.Error(t, err)
	_, err = decodeGroups([]byte{0x7e, 0x01})
	require.Error(t, err)
}
