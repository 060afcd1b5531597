package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"

	"github.com/ericogr/sensor-hub/pkg/config"
	"github.com/ericogr/sensor-hub/pkg/hub"
	"github.com/ericogr/sensor-hub/pkg/output"
	"github.com/ericogr/sensor-hub/pkg/output/console"
	"github.com/ericogr/sensor-hub/pkg/output/mqtt"
	"github.com/ericogr/sensor-hub/pkg/sensor"
	"github.com/ericogr/sensor-hub/pkg/storage"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := golog.NewDevelopmentLogger("sensorhub")

	drivers, err := buildDrivers(cfg)
	if err != nil {
		logger.Fatalf("build drivers: %v", err)
	}
	defer closeDrivers(drivers)

	reg := hub.NewRegistry()
	for _, d := range drivers {
		if err := reg.Register(d); err != nil {
			logger.Fatalf("register %s driver: %v", d.Kind(), err)
		}
	}

	var store storage.Store
	if cfg.Persistence.Enabled {
		fs, err := storage.NewFileStore(cfg.Persistence.Dir)
		if err != nil {
			logger.Fatalf("open store: %v", err)
		}
		store = fs
	}

	pubs, outs, err := initOutputs(cfg)
	if err != nil {
		logger.Fatalf("init outputs: %v", err)
	}
	defer closeOutputs(outs)

	svc := hub.NewService(reg, hubConfig(cfg), hub.Deps{
		Log:          logger,
		Store:        store,
		Publications: pubs,
	})
	if err := svc.Run(); err != nil {
		logger.Fatalf("run sensor service: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received signal: %v, shutting down", sig)

	svc.Stop()
	// allow the in-flight loop iteration to finish
	time.Sleep(200 * time.Millisecond)
}

// hubConfig maps the millisecond config fields onto the service periods.
func hubConfig(cfg config.Config) hub.Config {
	return hub.Config{
		SampleInterval:   time.Duration(cfg.SampleIntervalMs) * time.Millisecond,
		SnapshotInterval: time.Duration(cfg.SnapshotIntervalMs) * time.Millisecond,
		PersistInterval:  time.Duration(cfg.PersistIntervalMs) * time.Millisecond,
		ErrorLogThrottle: uint32(cfg.ErrorLogThrottle),
	}
}

// buildDrivers constructs one driver per enabled kind, real or fake.
func buildDrivers(cfg config.Config) ([]sensor.Driver, error) {
	fake := cfg.SensorType == "fake"
	var drivers []sensor.Driver

	if cfg.Power.Enabled {
		if fake {
			drivers = append(drivers, sensor.NewFakePower())
		} else {
			d, err := sensor.NewINA226(cfg.Power)
			if err != nil {
				closeDrivers(drivers)
				return nil, fmt.Errorf("ina226: %w", err)
			}
			drivers = append(drivers, d)
		}
	}
	if cfg.Climate.Enabled {
		if fake {
			drivers = append(drivers, sensor.NewFakeClimate())
		} else {
			d, err := sensor.NewAHT20(cfg.Climate)
			if err != nil {
				closeDrivers(drivers)
				return nil, fmt.Errorf("aht20: %w", err)
			}
			drivers = append(drivers, d)
		}
	}
	return drivers, nil
}

// initOutputs builds the configured outputs and their publications.
func initOutputs(cfg config.Config) ([]hub.Publication, []output.Output, error) {
	var pubs []hub.Publication
	var outs []output.Output
	for _, oc := range cfg.Outputs {
		var out output.Output
		switch oc.Type {
		case "console":
			out = console.NewConsole()
		case "mqtt":
			mc := config.MQTTConfig{}
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			m, err := mqtt.NewMQTT(mc)
			if err != nil {
				closeOutputs(outs)
				return nil, nil, err
			}
			out = m
		default:
			closeOutputs(outs)
			return nil, nil, fmt.Errorf("unknown output type %q", oc.Type)
		}
		outs = append(outs, out)
		pubs = append(pubs, hub.Publication{
			Output:   out,
			Interval: time.Duration(oc.IntervalMs) * time.Millisecond,
		})
	}
	return pubs, outs, nil
}

func closeDrivers(drivers []sensor.Driver) {
	for _, d := range drivers {
		_ = d.Close()
	}
}

func closeOutputs(outs []output.Output) {
	for _, o := range outs {
		_ = o.Close()
	}
}
