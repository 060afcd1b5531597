package sensor

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ericogr/sensor-hub/pkg/config"
)

const (
	ina226RegConfig      = 0x00
	ina226RegShunt       = 0x01
	ina226RegBus         = 0x02
	ina226RegPower       = 0x03
	ina226RegCurrent     = 0x04
	ina226RegCalibration = 0x05

	// 16-sample averaging, 1.1ms conversion times, continuous shunt+bus.
	ina226ConfigValue = 0x4527

	// Bus voltage register LSB is 1.25mV.
	ina226BusLSBMicrovolts = 1250
)

// INA226Driver reads a TI INA226 power monitor over I2C.
type INA226Driver struct {
	dev           *i2c.Dev
	bus           i2c.BusCloser
	currentLSBuA  int64
	shuntMilliohm int64
	ready         bool
}

func NewINA226(cfg config.PowerConfig) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	dev := &i2c.Dev{Addr: uint16(cfg.Address), Bus: bus}
	return &INA226Driver{
		dev:           dev,
		bus:           bus,
		currentLSBuA:  int64(cfg.CurrentLSBMicroamps),
		shuntMilliohm: int64(cfg.ShuntMilliohms),
	}, nil
}

func (d *INA226Driver) Kind() Kind { return Power }

func (d *INA226Driver) Close() error {
	if d.bus != nil {
		return d.bus.Close()
	}
	return nil
}

// Init writes the configuration and calibration registers. Idempotent.
func (d *INA226Driver) Init() error {
	if d.ready {
		return nil
	}
	cal, err := ina226Calibration(d.currentLSBuA, d.shuntMilliohm)
	if err != nil {
		return err
	}
	if err := d.writeReg(ina226RegConfig, ina226ConfigValue); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := d.writeReg(ina226RegCalibration, cal); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	d.ready = true
	return nil
}

func (d *INA226Driver) Read() (Sample, error) {
	if err := d.Init(); err != nil {
		return nil, err
	}
	busRaw, err := d.readReg(ina226RegBus)
	if err != nil {
		return nil, fmt.Errorf("read bus voltage: %w", err)
	}
	curRaw, err := d.readReg(ina226RegCurrent)
	if err != nil {
		return nil, fmt.Errorf("read current: %w", err)
	}
	powRaw, err := d.readReg(ina226RegPower)
	if err != nil {
		return nil, fmt.Errorf("read power: %w", err)
	}
	return PowerSample{
		BusMillivolts:    ina226BusMillivolts(busRaw),
		CurrentMilliamps: ina226CurrentMilliamps(int16(curRaw), d.currentLSBuA),
		PowerMilliwatts:  ina226PowerMilliwatts(powRaw, d.currentLSBuA),
		Timestamp:        time.Now(),
	}, nil
}

func (d *INA226Driver) writeReg(reg byte, val uint16) error {
	return d.dev.Tx([]byte{reg, byte(val >> 8), byte(val & 0xFF)}, nil)
}

func (d *INA226Driver) readReg(reg byte) (uint16, error) {
	buf := make([]byte, 2)
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ina226Calibration computes the calibration register value:
// cal = 0.00512 / (currentLSB * Rshunt), in microamp/milliohm units.
func ina226Calibration(currentLSBuA, shuntMilliohm int64) (uint16, error) {
	if currentLSBuA <= 0 || shuntMilliohm <= 0 {
		return 0, fmt.Errorf("invalid calibration: current_lsb=%duA shunt=%dmOhm", currentLSBuA, shuntMilliohm)
	}
	cal := 5120000 / (currentLSBuA * shuntMilliohm)
	if cal == 0 || cal > 0x7FFF {
		return 0, fmt.Errorf("calibration out of range: %d", cal)
	}
	return uint16(cal), nil
}

func ina226BusMillivolts(raw uint16) int32 {
	return int32(int64(raw) * ina226BusLSBMicrovolts / 1000)
}

func ina226CurrentMilliamps(raw int16, currentLSBuA int64) int32 {
	return int32(int64(raw) * currentLSBuA / 1000)
}

// Power register LSB is 25x the current LSB.
func ina226PowerMilliwatts(raw uint16, currentLSBuA int64) int32 {
	return int32(int64(raw) * 25 * currentLSBuA / 1000)
}
