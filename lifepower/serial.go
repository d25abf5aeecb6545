package lifepower

import (
	"errors"
	"fmt"
	"go.bug.st/serial.v1"
	"log"
	"sync"
	"time"
)

var ErrNoSerialPortFound = errors.New("didn't find any available serial port")
var ErrClosedPort = errors.New("serial port is closed")

// EG4 Lifepower units talk 9600 8N1.
var DefaultSerialConfig = &serial.Mode{
	BaudRate: 9600,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

var DefaultTimeout = time.Second

type SerialConnection struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	serial.Port
	path   string
	config *serial.Mode

	rdChan    chan []byte
	wrChan    chan []byte
	errChan   chan error
	closeChan chan struct{}
	wg        sync.WaitGroup
}

func NewSerial(port serial.Port, config *serial.Mode, name string) *SerialConnection {
	return &SerialConnection{
		Port:      port,
		path:      name,
		config:    config,
		rdChan:    make(chan []byte),
		wrChan:    make(chan []byte),
		errChan:   make(chan error),
		closeChan: make(chan struct{}),

		ReadTimeout:  DefaultTimeout,
		WriteTimeout: DefaultTimeout,
	}
}

// Start begins the two routines responsible
// for reading and writing on serial port.
func (sc *SerialConnection) Start() {
	sc.wg.Add(2)
	go func() {
		sc.readRoutine()
		sc.wg.Done()
	}()
	go func() {
		sc.writeRoutine()
		sc.wg.Done()
	}()
}

// Exchange writes cmd then assembles the device's reply against its
// length field: once lengthPos is readable, the expected total frame
// length is buf[lengthPos]+minLength. Chunks keep accumulating until
// that many bytes arrived or a read times out.
func (sc *SerialConnection) Exchange(cmd []byte, lengthPos, minLength int) ([]byte, error) {
	if err := sc.write(cmd); err != nil {
		return nil, err
	}
	var buf []byte
	for {
		chunk, err := sc.read()
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if n, done := frameComplete(buf, lengthPos, minLength); done {
			return buf[:n], nil
		}
	}
}

// frameComplete reports whether buf holds a complete response and how
// many of its bytes belong to it.
func frameComplete(buf []byte, lengthPos, minLength int) (int, bool) {
	if len(buf) <= lengthPos {
		return 0, false
	}
	expected := int(buf[lengthPos]) + minLength
	if len(buf) < expected {
		return 0, false
	}
	return expected, true
}

// read takes one of sc.rdChan or sc.errChan, waiting up to sc.ReadTimeout,
// it also checks if connection is closed and returns error accordingly.
func (sc *SerialConnection) read() (b []byte, err error) {
	select {
	case b = <-sc.rdChan:
	case err = <-sc.errChan:
	case <-sc.closeChan:
		err = ErrClosedPort
	case <-time.After(sc.ReadTimeout):
		err = fmt.Errorf("read timeout (%s)", sc.ReadTimeout)
	}
	return b, err
}

// write pushes b to sc.wrChan, or returns an error
// after sc.WriteTimeout, or if connection is closed.
func (sc *SerialConnection) write(b []byte) (err error) {
	select {
	case sc.wrChan <- b:
	case <-sc.closeChan:
		err = ErrClosedPort
	case <-time.After(sc.WriteTimeout):
		err = fmt.Errorf("write timeout (%s)", sc.WriteTimeout)
	}
	return err
}

// Close notifies read/write routines to stop, then waits
// for them to return, it then actually closes serial port.
func (sc *SerialConnection) Close() error {
	close(sc.closeChan)
	sc.wg.Wait()
	return sc.Port.Close()
}

// Path returns device name / path of serial port.
func (sc *SerialConnection) Path() string {
	return sc.path
}

func (sc *SerialConnection) readRoutine() {
	for {
		time.Sleep(time.Millisecond * 50)
		b := make([]byte, 64)
		i, err := sc.Port.Read(b)
		if err != nil {
			select {
			case sc.errChan <- err:
			case <-sc.closeChan:
				return
			}
		} else {
			select {
			case sc.rdChan <- b[:i]:
			case <-sc.closeChan:
				return
			}
		}
	}
}

func (sc *SerialConnection) writeRoutine() {
	var b []byte
	for {
		time.Sleep(time.Millisecond * 50)
		select {
		case b = <-sc.wrChan:
		case <-sc.closeChan:
			return
		}
		_, err := sc.Port.Write(b)
		if err != nil {
			log.Println("in sc.writeRoutine:", err)
		}
	}
}

// FindSerial walks available serial ports probing each for a Lifepower
// unit at addr (platform independant hopefully). If config is nil,
// DefaultSerialConfig is used.
func FindSerial(addr byte, config *serial.Mode) (*SerialConnection, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultSerialConfig
	}
	var port serial.Port
	for _, v := range ports {
		port, err = serial.Open(v, config)
		if err == nil {
			log.Printf("trying \"%s\"...", v)
			conn := NewSerial(port, config, v)
			conn.ReadTimeout = time.Millisecond * 500
			conn.WriteTimeout = time.Millisecond * 500
			conn.Start()
			// temporary driver to probe the port
			drv := NewDriver(conn, addr)
			if err := drv.TestConnection(); err == nil {
				log.Printf("found %s on \"%s\"", BatteryType, v)
				return conn, nil
			}
			conn.Close()
		}
	}
	if err == nil {
		return nil, ErrNoSerialPortFound
	}
	return nil, err
}

func OpenPortName(name string) (port serial.Port, config *serial.Mode, err error) {
	config = DefaultSerialConfig
	port, err = serial.Open(name, config)
	return port, config, err
}
