package lifepower

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

const BatteryType = "EG4 Lifepower"

var ErrBadTerminator = errors.New("response not terminated by 0x0d")

// Transport is the serial exchange primitive the driver relies on. It
// writes one command frame and returns the response the device sent back,
// already assembled against the length field at lengthPos (total frame
// length is that byte plus minLength). SerialConnection implements it.
type Transport interface {
	Exchange(cmd []byte, lengthPos, minLength int) ([]byte, error)
}

// Driver polls one EG4 Lifepower unit on a shared serial bus. Each driver
// owns its address, its precomputed command frames and its last snapshot;
// nothing is shared between instances. The embedded lock guards the
// mutable fields; serializing whole poll cycles is the Poller's job.
type Driver struct {
	sync.Mutex
	Conn Transport

	address byte
	cmds    commandSet
	online  bool

	hardwareVersion string
	firmwareVersion string

	snapshot *Snapshot // last good refresh, replaced wholesale
}

// NewDriver builds the command frames for addr once and wires conn.
// It performs no I/O, call TestConnection to probe the device.
func NewDriver(conn Transport, addr byte) *Driver {
	return &Driver{
		Conn:    conn,
		address: addr,
		cmds:    newCommandSet(addr),
	}
}

func (d *Driver) Address() byte { return d.address }
func (d *Driver) Type() string  { return BatteryType }

func (d *Driver) HardwareVersion() string {
	d.Lock()
	defer d.Unlock()
	return d.hardwareVersion
}

func (d *Driver) FirmwareVersion() string {
	d.Lock()
	defer d.Unlock()
	return d.firmwareVersion
}

// Snapshot returns the last good telemetry, false if no refresh
// succeeded yet.
func (d *Driver) Snapshot() (Snapshot, bool) {
	d.Lock()
	defer d.Unlock()
	if d.snapshot == nil {
		return Snapshot{}, false
	}
	return *d.snapshot, true
}

// Online reports whether the last exchange with the device succeeded.
func (d *Driver) Online() bool {
	d.Lock()
	defer d.Unlock()
	return d.online
}

// TestConnection probes the device: settings first, then one full
// refresh, both must succeed. Used to pick this driver among candidates,
// so anything unexpected (including panics from a misbehaving transport)
// converts to a plain error here instead of propagating.
func (d *Driver) TestConnection() (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("in TestConnection: recovered %v\n%s", r, debug.Stack())
			err = fmt.Errorf("probe address 0x%02x: %v", d.address, r)
		}
	}()
	if err = d.GetSettings(); err != nil {
		return err
	}
	return d.RefreshData()
}

// GetSettings reads the hardware and firmware version strings. The two
// queries are independent, one failure is tolerated; only both failing
// fails the call.
func (d *Driver) GetSettings() error {
	var hwErr, fwErr error

	if buf, err := d.readFrame(d.cmds.HardwareVersion); err != nil {
		hwErr = err
	} else {
		hw := sanitizeText(buf)
		d.Lock()
		d.hardwareVersion = hw
		d.Unlock()
		log.Printf("hardware version for address 0x%02x: %s", d.address, hw)
	}

	if buf, err := d.readFrame(d.cmds.FirmwareVersion); err != nil {
		fwErr = err
	} else {
		fw := sanitizeText(buf)
		d.Lock()
		d.firmwareVersion = fw
		d.Unlock()
		log.Printf("firmware version for address 0x%02x: %s", d.address, fw)
	}

	if hwErr != nil && fwErr != nil {
		return fmt.Errorf("settings for address 0x%02x: hardware: %v, firmware: %v", d.address, hwErr, fwErr)
	}
	return nil
}

// RefreshData runs one full poll cycle: general query, group decode,
// telemetry mapping. On any failure the previous snapshot is kept,
// nothing partial is ever published.
func (d *Driver) RefreshData() error {
	buf, err := d.readFrame(d.cmds.General)
	if err != nil {
		return err
	}
	groups, err := decodeGroups(buf)
	if err != nil {
		return err
	}
	sn, err := mapTelemetry(groups, time.Now())
	if err != nil {
		return err
	}
	d.Lock()
	d.snapshot = &sn
	d.Unlock()
	return nil
}

// readFrame sends one command and validates the terminator. A response
// the transport accepted but that does not end with 0x0d still counts as
// a connection error. No retry here, the poller owns retry cadence.
func (d *Driver) readFrame(cmd []byte) ([]byte, error) {
	buf, err := d.Conn.Exchange(cmd, LengthPos, LengthCheck)
	if err != nil {
		d.setOnline(false)
		return nil, err
	}
	if len(buf) == 0 || buf[len(buf)-1] != Terminator {
		d.connectionError()
		d.setOnline(false)
		return nil, ErrBadTerminator
	}
	d.setOnline(true)
	return buf, nil
}

func (d *Driver) setOnline(v bool) {
	d.Lock()
	d.online = v
	d.Unlock()
}

// connectionError is the hook invoked on a terminator mismatch. Only the
// online->offline edge is worth a loud line, repeats stay quiet.
func (d *Driver) connectionError() {
	d.Lock()
	online := d.online
	d.Unlock()
	if online {
		log.Printf("connection to address 0x%02x lost (bad terminator)", d.address)
	}
}
