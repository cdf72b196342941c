package device

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	appLog "senseled/internal/log"
)

// I2C writes frames through a periph.io I2C bus.
type I2C struct {
	dev *i2c.Dev
	bus i2c.Bus

	// closer is set when the bus was opened by Open and must be released.
	closer i2c.BusCloser
}

// NewI2C wraps an already opened bus. The caller keeps ownership of bus.
func NewI2C(bus i2c.Bus, addr uint16) *I2C {
	return &I2C{
		dev: &i2c.Dev{Bus: bus, Addr: addr},
		bus: bus,
	}
}

// Open initializes periph.io, opens the bus named in opts and returns a
// transport for the device. Close releases the bus.
func Open(opts Options) (*I2C, error) {
	opts = opts.withDefaults()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("device: periph host init failed: %w", err)
	}

	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("device: failed to open I2C bus %q: %w", opts.Bus, err)
	}

	if opts.Speed > 0 {
		// 일부 드라이버(sysfs 등)는 속도 변경을 지원하지 않으므로 실패해도 계속 진행한다.
		if err := bus.SetSpeed(opts.Speed); err != nil {
			appLog.Warn("i2c bus speed not applied", "bus", bus.String(), "speed", opts.Speed.String(), "err", err)
		}
	}

	t := NewI2C(bus, opts.Addr)
	t.closer = bus
	appLog.Info("i2c device opened", "bus", bus.String(), "addr", fmt.Sprintf("0x%02x", opts.Addr))
	return t, nil
}

// Write implements Transport.
func (t *I2C) Write(b []byte) error {
	n, err := t.dev.Write(b)
	if err != nil {
		return &TransportError{Addr: t.dev.Addr, Len: len(b), Err: err}
	}
	if n != len(b) {
		return &TransportError{Addr: t.dev.Addr, Len: len(b), Err: ErrShortWrite}
	}
	return nil
}

// Close releases the bus if Open created it.
func (t *I2C) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

func (t *I2C) String() string {
	return fmt.Sprintf("%s@0x%02x", t.bus.String(), t.dev.Addr)
}
