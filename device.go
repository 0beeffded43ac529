package sensironscd41

import (
	"context"
	"encoding/binary"
	"time"

	coreio "github.com/go-sensors/core/io"
	"github.com/go-sensors/core/units"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultConversionDivisor is the denominator used to convert raw 16-bit
	// counts into degrees Celsius and percent relative humidity. Older
	// datasheet revisions specify 65535 instead; see WithConversionDivisor.
	DefaultConversionDivisor float64 = 65536

	// The temperature offset is scaled over the full 16-bit range per the
	// datasheet, independent of the measurement conversion divisor.
	temperatureOffsetScale float64 = 175.0 / 65535.0

	// Only the low 11 bits of the data-ready status word carry the flag.
	dataReadyMask uint16 = 0x07FF
)

// Measurement is a single sensor reading. CO2 is the sensor's raw
// parts-per-million count, used without further scaling; Temperature and
// Humidity are converted to degrees Celsius and percent relative humidity.
type Measurement struct {
	CO2         uint16
	Temperature float64
	Humidity    float64
}

// Device is a protocol driver for a Sensiron SCD41 on an exclusively-owned
// port. Operations are synchronous, single-shot bus transactions with the
// settle delays the sensor requires; they must not be invoked concurrently.
// The Device does not own the port's lifecycle.
type Device struct {
	port              coreio.Port
	conversionDivisor float64
}

// DeviceOption is a configured option that may be applied to a Device
type DeviceOption struct {
	apply func(*Device)
}

// NewDevice creates a Device communicating over the given port, with optional
// configuration
func NewDevice(port coreio.Port, options ...*DeviceOption) *Device {
	device := &Device{
		port:              port,
		conversionDivisor: DefaultConversionDivisor,
	}
	for _, o := range options {
		o.apply(device)
	}
	return device
}

// WithConversionDivisor specifies the denominator used when converting raw
// temperature and humidity counts to physical units. Datasheet revisions
// disagree on whether this is 65535 or 65536; the default is 65536.
func WithConversionDivisor(conversionDivisor float64) *DeviceOption {
	return &DeviceOption{
		apply: func(d *Device) {
			d.conversionDivisor = conversionDivisor
		},
	}
}

// ConversionDivisor is the denominator used when converting raw temperature
// and humidity counts to physical units
func (d *Device) ConversionDivisor() float64 {
	return d.conversionDivisor
}

// WakeUp wakes the sensor from sleep mode. A sensor that is already awake does
// not acknowledge the command, so callers conditioning the sensor should treat
// a failure here as non-fatal.
func (d *Device) WakeUp(ctx context.Context) error {
	_, err := d.command(cmdWakeUp, nil)
	return err
}

// StartPeriodicMeasurement puts the sensor into periodic measurement mode,
// producing a new reading every signal update interval.
func (d *Device) StartPeriodicMeasurement(ctx context.Context) error {
	_, err := d.command(cmdStartPeriodicMeasurement, nil)
	return err
}

// StopPeriodicMeasurement takes the sensor out of periodic measurement mode.
// Most configuration commands are only accepted while stopped.
func (d *Device) StopPeriodicMeasurement(ctx context.Context) error {
	_, err := d.command(cmdStopPeriodicMeasurement, nil)
	return err
}

// Reinit reinitializes the sensor by reloading settings from EEPROM.
func (d *Device) Reinit(ctx context.Context) error {
	_, err := d.command(cmdReinit, nil)
	return err
}

// CleanState conditions the sensor into a known idle state by attempting a
// wake-up, a stop of any running periodic measurement, and a reinitialization,
// in that order. Each step is best-effort: the sensor rejects commands it
// considers redundant for its current state, so failures are logged at trace
// level and the sequence continues.
func (d *Device) CleanState(ctx context.Context) {
	attempt("wake up", d.WakeUp(ctx))
	attempt("stop periodic measurement", d.StopPeriodicMeasurement(ctx))
	attempt("reinit", d.Reinit(ctx))
}

// attempt logs a failed conditioning step without propagating it.
func attempt(step string, err error) {
	if err != nil {
		log.Tracef("failed to %s while conditioning sensor: %s", step, err)
	}
}

// GetSerialNumber reads the sensor's unique 48-bit serial number.
func (d *Device) GetSerialNumber(ctx context.Context) (uint64, error) {
	words, err := d.command(cmdGetSerialNumber, nil)
	if err != nil {
		return 0, err
	}

	serialNumber := uint64(words[0])<<32 | uint64(words[1])<<16 | uint64(words[2])
	return serialNumber, nil
}

// GetDataReadyStatus reports whether a new measurement is available to read.
func (d *Device) GetDataReadyStatus(ctx context.Context) (bool, error) {
	words, err := d.command(cmdGetDataReadyStatus, nil)
	if err != nil {
		return false, err
	}

	ready := words[0]&dataReadyMask != 0
	return ready, nil
}

// ReadMeasurement reads the most recent measurement from the sensor. The
// reading is only valid when GetDataReadyStatus has reported true; reading
// earlier returns the previous measurement.
func (d *Device) ReadMeasurement(ctx context.Context) (*Measurement, error) {
	words, err := d.command(cmdReadMeasurement, nil)
	if err != nil {
		return nil, err
	}

	measurement := &Measurement{
		CO2:         words[0],
		Temperature: d.countToTemperature(words[1]),
		Humidity:    d.countToHumidity(words[2]),
	}
	return measurement, nil
}

// GetTemperatureOffset reads the configured temperature offset.
func (d *Device) GetTemperatureOffset(ctx context.Context) (units.Temperature, error) {
	words, err := d.command(cmdGetTemperatureOffset, nil)
	if err != nil {
		return 0, err
	}

	offset := float64(words[0]) * temperatureOffsetScale
	return units.Temperature(offset * float64(units.DegreeCelsius)), nil
}

// SetTemperatureOffset writes a new temperature offset. The setting is not
// persisted across power cycles.
func (d *Device) SetTemperatureOffset(ctx context.Context, offset units.Temperature) error {
	count := uint16(offset.DegreesCelsius() / temperatureOffsetScale)
	_, err := d.command(cmdSetTemperatureOffset, []uint16{count})
	return err
}

func (d *Device) countToTemperature(count uint16) float64 {
	return float64(count)*175.0/d.conversionDivisor - 45.0
}

func (d *Device) countToHumidity(count uint16) float64 {
	return float64(count) * 100.0 / d.conversionDivisor
}

// command performs one bus transaction: the command code plus any data words
// are written, the command's settle delay is honored, and the response (when
// one is defined) is read and validated word by word. The settle delay is not
// cancellable; aborting between write and read would leave the sensor's state
// ambiguous.
func (d *Device) command(cmd command, data []uint16) ([]uint16, error) {
	payload := make([]byte, wordLength, wordLength+len(data)*(wordLength+crcLength))
	binary.BigEndian.PutUint16(payload, cmd.code)
	if len(data) > 0 {
		payload = append(payload, encodeWords(data)...)
	}

	if _, err := d.port.Write(payload); err != nil {
		return nil, &WriteError{Cmd: cmd.code, Cause: err}
	}

	if cmd.delay > 0 {
		time.Sleep(cmd.delay)
	}

	if cmd.words == 0 {
		return nil, nil
	}

	buf := make([]byte, cmd.words*(wordLength+crcLength))
	if _, err := d.port.Read(buf); err != nil {
		return nil, &ReadError{Cmd: cmd.code, Word: -1, Cause: err}
	}

	words, failedWord, err := decodeWords(buf)
	if err != nil {
		return nil, &ReadError{Cmd: cmd.code, Word: failedWord, Cause: err}
	}
	return words, nil
}
