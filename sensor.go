package sensironscd41

import (
	"context"
	"sync"
	"time"

	"github.com/go-sensors/core/gas"
	"github.com/go-sensors/core/humidity"
	coreio "github.com/go-sensors/core/io"
	"github.com/go-sensors/core/temperature"
	"github.com/go-sensors/core/units"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	CarbonDioxide string = "CO2"
)

// Sensor represents a configured Sensiron SCD41 gas sensor
type Sensor struct {
	gases              chan *gas.Concentration
	temperatures       chan *units.Temperature
	relativeHumidities chan *units.RelativeHumidity
	portFactory        coreio.PortFactory
	reconnectTimeout   time.Duration
	pollInterval       time.Duration
	errorHandlerFunc   ShouldTerminate
	deviceOptions      []*DeviceOption
	mutex              *sync.Mutex
	serialNumber       uint64
}

// Option is a configured option that may be applied to a Sensor
type Option struct {
	apply func(*Sensor)
}

// NewSensor creates a Sensor with optional configuration
func NewSensor(portFactory coreio.PortFactory, options ...*Option) *Sensor {
	gases := make(chan *gas.Concentration)
	temperatures := make(chan *units.Temperature)
	relativeHumidities := make(chan *units.RelativeHumidity)
	mutex := &sync.Mutex{}
	s := &Sensor{
		gases:              gases,
		temperatures:       temperatures,
		relativeHumidities: relativeHumidities,
		portFactory:        portFactory,
		reconnectTimeout:   DefaultReconnectTimeout,
		pollInterval:       DefaultPollInterval,
		errorHandlerFunc:   nil,
		mutex:              mutex,
	}
	for _, o := range options {
		o.apply(s)
	}
	return s
}

// WithReconnectTimeout specifies the duration to wait before reconnecting after a recoverable error
func WithReconnectTimeout(timeout time.Duration) *Option {
	return &Option{
		apply: func(s *Sensor) {
			s.reconnectTimeout = timeout
		},
	}
}

// WithPollInterval specifies the duration to wait between data-ready polls of the sensor
func WithPollInterval(interval time.Duration) *Option {
	return &Option{
		apply: func(s *Sensor) {
			s.pollInterval = interval
		},
	}
}

// WithDeviceOptions specifies options to apply to the protocol driver used by the Sensor
func WithDeviceOptions(options ...*DeviceOption) *Option {
	return &Option{
		apply: func(s *Sensor) {
			s.deviceOptions = options
		},
	}
}

// ReconnectTimeout is the duration to wait before reconnecting after a recoverable error
func (s *Sensor) ReconnectTimeout() time.Duration {
	return s.reconnectTimeout
}

// PollInterval is the duration to wait between data-ready polls of the sensor
func (s *Sensor) PollInterval() time.Duration {
	return s.pollInterval
}

// ShouldTerminate is a function that returns a result indicating whether the Sensor should terminate after a recoverable error
type ShouldTerminate func(error) bool

// WithRecoverableErrorHandler registers a function that will be called when a recoverable error occurs
func WithRecoverableErrorHandler(f ShouldTerminate) *Option {
	return &Option{
		apply: func(s *Sensor) {
			s.errorHandlerFunc = f
		},
	}
}

// RecoverableErrorHandler a function that will be called when a recoverable error occurs
func (s *Sensor) RecoverableErrorHandler() ShouldTerminate {
	return s.errorHandlerFunc
}

// SerialNumber is the 48-bit serial number of the sensor, or zero before Run
// has read it.
func (s *Sensor) SerialNumber() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.serialNumber
}

// Run begins reading from the sensor and blocks until either an error occurs or the context is completed
func (s *Sensor) Run(ctx context.Context) error {
	defer close(s.gases)
	defer close(s.temperatures)
	defer close(s.relativeHumidities)
	for {
		port, err := s.portFactory.Open()
		if err != nil {
			return errors.Wrap(err, "failed to open port")
		}

		device := NewDevice(port, s.deviceOptions...)
		defer device.CleanState(context.Background())

		group, innerCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			<-innerCtx.Done()
			return port.Close()
		})
		group.Go(func() error {
			device.CleanState(innerCtx)

			serialNumber, err := device.GetSerialNumber(innerCtx)
			if err != nil {
				return errors.Wrap(err, "failed to read serial number")
			}
			log.Infof("found SCD41 with serial number %012x", serialNumber)

			s.mutex.Lock()
			s.serialNumber = serialNumber
			s.mutex.Unlock()

			err = device.StartPeriodicMeasurement(innerCtx)
			if err != nil {
				return errors.Wrap(err, "failed to start periodic measurement")
			}

			for {
				select {
				case <-innerCtx.Done():
					return nil
				case <-time.After(s.pollInterval):
				}

				ready, err := device.GetDataReadyStatus(innerCtx)
				if err != nil {
					return errors.Wrap(err, "failed to get data ready status")
				}

				if !ready {
					continue
				}

				measurement, err := device.ReadMeasurement(innerCtx)
				if err != nil {
					return errors.Wrap(err, "failed to read measurement")
				}

				co2 := &gas.Concentration{
					Gas:    CarbonDioxide,
					Amount: units.Concentration(float64(measurement.CO2) * float64(units.PartPerMillion)),
				}
				temperature := units.Temperature(measurement.Temperature * float64(units.DegreeCelsius))
				relativeHumidity := &units.RelativeHumidity{
					Temperature: temperature,
					Percentage:  measurement.Humidity / 100,
				}

				select {
				case <-ctx.Done():
					return nil
				case s.gases <- co2:
				}

				select {
				case <-ctx.Done():
					return nil
				case s.temperatures <- &temperature:
				}

				select {
				case <-ctx.Done():
					return nil
				case s.relativeHumidities <- relativeHumidity:
				}
			}
		})

		err = group.Wait()
		if s.errorHandlerFunc != nil {
			if s.errorHandlerFunc(err) {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectTimeout):
		}
	}
}

// Concentrations returns a channel of concentration readings as they become available from the sensor
func (s *Sensor) Concentrations() <-chan *gas.Concentration {
	return s.gases
}

// ConcentrationSpecs returns a collection of specified measurement ranges supported by the sensor
func (*Sensor) ConcentrationSpecs() []*gas.ConcentrationSpec {
	return []*gas.ConcentrationSpec{
		{
			Gas:              CarbonDioxide,
			Resolution:       1 * units.PartPerMillion,
			MinConcentration: 400 * units.PartPerMillion,
			MaxConcentration: 5000 * units.PartPerMillion,
		},
	}
}

// Temperatures returns a channel of temperature readings as they become available from the sensor
func (s *Sensor) Temperatures() <-chan *units.Temperature {
	return s.temperatures
}

// TemperatureSpecs returns a collection of specified measurement ranges supported by the sensor
func (*Sensor) TemperatureSpecs() []*temperature.TemperatureSpec {
	return []*temperature.TemperatureSpec{
		{
			Resolution:     10 * units.ThousandthDegreeCelsius,
			MinTemperature: -10 * units.DegreeCelsius,
			MaxTemperature: 60 * units.DegreeCelsius,
		},
	}
}

// RelativeHumidities returns a channel of relative humidity readings as they become available from the sensor
func (s *Sensor) RelativeHumidities() <-chan *units.RelativeHumidity {
	return s.relativeHumidities
}

// RelativeHumiditySpecs returns a collection of specified measurement ranges supported by the sensor
func (*Sensor) RelativeHumiditySpecs() []*humidity.RelativeHumiditySpec {
	return []*humidity.RelativeHumiditySpec{
		{
			PercentageResolution: 0.001,
			MinPercentage:        0.0,
			MaxPercentage:        1.0,
		},
	}
}
