package main

import (
	coreio "github.com/go-sensors/core/io"
	"periph.io/x/conn/v3/i2c"
)

// i2cPortFactory adapts a periph.io I2C bus to the go-sensors port interface.
type i2cPortFactory struct {
	bus  i2c.Bus
	addr uint16
}

func (f *i2cPortFactory) Open() (coreio.Port, error) {
	return &i2cPort{dev: &i2c.Dev{Bus: f.bus, Addr: f.addr}}, nil
}

// i2cPort is a port bound to a single device address on the bus.
type i2cPort struct {
	dev *i2c.Dev
}

func (p *i2cPort) Write(buf []byte) (int, error) {
	if err := p.dev.Tx(buf, nil); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (p *i2cPort) Read(buf []byte) (int, error) {
	if err := p.dev.Tx(nil, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Close releases the port. The underlying bus stays open so the sensor can
// reconnect; it is closed by the caller that opened it.
func (p *i2cPort) Close() error {
	return nil
}
