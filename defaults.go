package sensironscd41

import (
	"time"

	"github.com/go-sensors/core/i2c"
)

const (
	DefaultReconnectTimeout = 5 * time.Second
	// The sensor produces a new reading every 5 seconds in periodic
	// measurement mode; polling faster only burns the data-ready budget.
	DefaultPollInterval = 1 * time.Second
)

// GetDefaultI2CPortConfig gets the manufacturer-specified defaults for connecting to the sensor
func GetDefaultI2CPortConfig() *i2c.I2CPortConfig {
	return &i2c.I2CPortConfig{
		Address: 0x62,
	}
}
