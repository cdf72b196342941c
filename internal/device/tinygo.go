package device

import "tinygo.org/x/drivers"

// TinyGo adapts a TinyGo I2C bus (machine.I2C or any drivers.I2C) to
// Transport so the same frames can be pushed from a microcontroller build.
type TinyGo struct {
	bus  drivers.I2C
	addr uint16
}

// NewTinyGo returns a transport writing to addr on bus. The bus must have
// been configured already.
func NewTinyGo(bus drivers.I2C, addr uint16) *TinyGo {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &TinyGo{bus: bus, addr: addr}
}

// Write implements Transport.
func (t *TinyGo) Write(b []byte) error {
	if err := t.bus.Tx(t.addr, b, nil); err != nil {
		return &TransportError{Addr: t.addr, Len: len(b), Err: err}
	}
	return nil
}
