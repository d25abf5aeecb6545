package lifepower

// EG4 Lifepower wire format. Commands are fixed 6-byte frames:
//
//	7E <addr> <func> 00 <part> 0D
//
// Responses always end with 0x0D.

const (
	StartByte  byte = 0x7e
	Terminator byte = 0x0d
)

const (
	FuncGeneral         byte = 0x01
	FuncFirmwareVersion byte = 0x33
	FuncHardwareVersion byte = 0x42
)

// Structural parameters handed to the transport: the response carries its
// payload length at byte 3, total frame length is that value plus 5.
const (
	LengthPos   = 3
	LengthCheck = 5
)

// generalPart returns the second to last byte of the general and
// firmware-version commands for a given bus address. The mapping was lifted
// from observed bus traffic; it is a literal lookup, not a checksum, and
// every address maps to one of five outcomes.
func generalPart(addr byte) byte {
	switch addr {
	case 0x00:
		return 0x00
	case 0x02, 0x06, 0x0a, 0x0e:
		return 0xfc
	case 0x04, 0x0c:
		return 0xf8
	case 0x08:
		return 0xf0
	default:
		return 0xfe
	}
}

// commandSet holds the three frames a driver ever sends.
// Built once per address, immutable afterwards.
type commandSet struct {
	General         []byte
	HardwareVersion []byte
	FirmwareVersion []byte
}

func newCommandSet(addr byte) commandSet {
	part := generalPart(addr)
	return commandSet{
		General:         []byte{StartByte, addr, FuncGeneral, 0x00, part, Terminator},
		HardwareVersion: []byte{StartByte, addr, FuncHardwareVersion, 0x00, 0xfc, Terminator},
		FirmwareVersion: []byte{StartByte, addr, FuncFirmwareVersion, 0x00, part, Terminator},
	}
}
