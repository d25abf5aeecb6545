package lifepower

import (
	"encoding/binary"
	"fmt"
)

const (
	groupDataStart = 4  // first group header in a status response
	groupCount     = 10 // groups carried by every status response
)

// FrameError reports a status response too short for the group lengths
// it declares.
type FrameError struct {
	Group  int // group being decoded when the buffer ran out
	Offset int // offset the decoder needed to reach
	Len    int // actual buffer length
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("status frame too short: group %d needs %d bytes, have %d", e.Group, e.Offset, e.Len)
}

// decodeGroups splits a validated status response into its 10 groups.
// Each group reads as <id> <count> followed by count big-endian uint16
// values. Groups are positional; a buffer that cannot satisfy all 10
// declared lengths is rejected rather than read past.
func decodeGroups(buf []byte) ([][]uint16, error) {
	groups := make([][]uint16, 0, groupCount)
	i := groupDataStart
	for j := 0; j < groupCount; j++ {
		if i+2 > len(buf) {
			return nil, &FrameError{Group: j, Offset: i + 2, Len: len(buf)}
		}
		n := int(buf[i+1])
		end := i + 2 + 2*n
		if end > len(buf) {
			return nil, &FrameError{Group: j, Offset: end, Len: len(buf)}
		}
		vals := make([]uint16, n)
		for k := 0; k < n; k++ {
			vals[k] = binary.BigEndian.Uint16(buf[i+2+2*k:])
		}
		groups = append(groups, vals)
		i = end
	}
	return groups, nil
}
