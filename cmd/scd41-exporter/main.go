// Command scd41-exporter polls a Sensiron SCD41 sensor over I2C and exposes
// its CO2, temperature, and humidity readings as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/go-sensors/sensironscd41"
)

// metrics to expose to Prometheus
var (
	gaugeCo2         = newGauge("co2_ppm", "Air carbon dioxide concentration (units: ppm)")
	gaugeTemperature = newGauge("temperature_celsius", "Air temperature (units: degrees Celsius)")
	gaugeHumidity    = newGauge("humidity_rh", "Relative humidity (units: %)")
	gaugeLastRead    = newGauge("last_measured_timestamp_ms", "Timestamp of the last successful measurement (units: Unix milliseconds)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"serial_number"},
	)
}

func init() {
	prometheus.MustRegister(gaugeCo2)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeLastRead)
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())
}

func main() {
	app := cli.NewApp()

	app.Name = "scd41-exporter"
	app.Usage = "export CO2, temperature, and humidity readings from a Sensiron SCD41 to Prometheus"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen-address, l",
			Value: "0.0.0.0:9000",
			Usage: "address to serve /metrics on",
		},
		cli.StringFlag{
			Name:  "bus, b",
			Value: "",
			Usage: "I2C bus name; empty selects the first available bus",
		},
		cli.DurationFlag{
			Name:  "poll-interval, p",
			Value: sensironscd41.DefaultPollInterval,
			Usage: "time between data-ready polls of the sensor",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}

	app.Action = serve
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if c.Bool("debug") {
		log.SetLevel(log.TraceLevel)
	}

	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize host drivers")
	}

	bus, err := i2creg.Open(c.String("bus"))
	if err != nil {
		return errors.Wrap(err, "failed to open i2c bus")
	}
	defer bus.Close()

	config := sensironscd41.GetDefaultI2CPortConfig()
	sensor := sensironscd41.NewSensor(
		&i2cPortFactory{bus: bus, addr: uint16(config.Address)},
		sensironscd41.WithPollInterval(c.Duration("poll-interval")),
		sensironscd41.WithRecoverableErrorHandler(func(err error) bool {
			log.Warnf("recovering from sensor error: %s", err)
			return false
		}))

	listenAddress := c.String("listen-address")
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
		log.Infof("serving metrics at http://%s/metrics", listenAddress)
		log.Fatal(http.ListenAndServe(listenAddress, nil))
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sensor.Run(ctx)
	})
	group.Go(func() error {
		return publish(ctx, sensor)
	})
	return group.Wait()
}

// publish forwards sensor readings to the Prometheus gauges until the context
// completes or the sensor's channels close.
func publish(ctx context.Context, sensor *sensironscd41.Sensor) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case concentration, ok := <-sensor.Concentrations():
			if !ok {
				return nil
			}
			gaugeCo2.WithLabelValues(serialLabel(sensor)).Set(concentration.Amount.PartsPerMillion())
			gaugeLastRead.WithLabelValues(serialLabel(sensor)).Set(float64(time.Now().UnixMilli()))
		case temperature, ok := <-sensor.Temperatures():
			if !ok {
				return nil
			}
			gaugeTemperature.WithLabelValues(serialLabel(sensor)).Set(temperature.DegreesCelsius())
		case relativeHumidity, ok := <-sensor.RelativeHumidities():
			if !ok {
				return nil
			}
			gaugeHumidity.WithLabelValues(serialLabel(sensor)).Set(relativeHumidity.Percentage * 100)
		}
	}
}

func serialLabel(sensor *sensironscd41.Sensor) string {
	return fmt.Sprintf("%012x", sensor.SerialNumber())
}
