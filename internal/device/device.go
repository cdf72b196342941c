// Package device provides the write side of the LED matrix: a Transport
// that pushes encoded frames to the controller, with a periph.io I2C
// implementation, a TinyGo bus adapter and an in-memory recorder.
package device

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// DefaultAddr is the 7-bit I2C address of the Sense HAT LED controller.
const DefaultAddr = 0x46

// StandardMode is the default I2C bus speed.
const StandardMode = 100 * physic.KiloHertz

// Transport writes one complete frame to the device. Failures are returned
// as *TransportError and never retried here.
type Transport interface {
	Write(b []byte) error
}

// ErrShortWrite is reported when the bus accepted fewer bytes than sent.
var ErrShortWrite = errors.New("device: short write")

// TransportError wraps a failed write to the device at Addr.
type TransportError struct {
	Addr uint16
	Len  int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("device: write %d bytes to 0x%02x: %v", e.Len, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options selects the bus and device.
type Options struct {
	// Bus is the periph.io bus name ("" picks the first bus, /dev/i2c-1 on
	// a Raspberry Pi).
	Bus string
	// Addr is the 7-bit device address.
	Addr uint16
	// Speed is the bus clock; zero keeps whatever the bus is set to.
	Speed physic.Frequency
}

func (o Options) withDefaults() Options {
	if o.Addr == 0 {
		o.Addr = DefaultAddr
	}
	return o
}
