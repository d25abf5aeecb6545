package web

import (
	"github.com/openvolt/lifemon/lifepower"
	"go.bug.st/serial.v1"
)

var DefaultConfig = Config{
	Address: 0x01,
	Web:     DefaultServerConfig,
	Poller:  lifepower.DefaultPollerConfig,
	Serial:  *lifepower.DefaultSerialConfig,
}

type Config struct {
	Device  string // serial port path, discovered when empty
	Address int    // bus address of the BMS unit
	Web     ServerConfig
	Poller  lifepower.PollerConfig
	Serial  serial.Mode
}
