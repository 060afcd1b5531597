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
	aht20CmdTrigger    = 0xAC
	aht20CmdInitialize = 0xBE
	aht20CmdStatus     = 0x71

	aht20StatusBusy       = 0x80
	aht20StatusCalibrated = 0x08

	// Nominal conversion time per datasheet; Read polls after this.
	aht20MeasureDelay = 80 * time.Millisecond
	aht20PollDelay    = 10 * time.Millisecond
	aht20MaxPolls     = 5
)

// AHT20Driver reads an ASAIR AHT20 temperature/humidity sensor over I2C.
type AHT20Driver struct {
	dev   *i2c.Dev
	bus   i2c.BusCloser
	ready bool
}

func NewAHT20(cfg config.ClimateConfig) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	dev := &i2c.Dev{Addr: uint16(cfg.Address), Bus: bus}
	return &AHT20Driver{dev: dev, bus: bus}, nil
}

func (d *AHT20Driver) Kind() Kind { return Climate }

func (d *AHT20Driver) Close() error {
	if d.bus != nil {
		return d.bus.Close()
	}
	return nil
}

// Init checks the calibration bit and sends the initialize command if the
// device reports uncalibrated. Idempotent.
func (d *AHT20Driver) Init() error {
	if d.ready {
		return nil
	}
	status, err := d.status()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if status&aht20StatusCalibrated == 0 {
		if err := d.dev.Tx([]byte{aht20CmdInitialize, 0x08, 0x00}, nil); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		time.Sleep(aht20PollDelay)
		status, err = d.status()
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if status&aht20StatusCalibrated == 0 {
			return fmt.Errorf("device not calibrated after init")
		}
	}
	d.ready = true
	return nil
}

func (d *AHT20Driver) Read() (Sample, error) {
	if err := d.Init(); err != nil {
		return nil, err
	}
	if err := d.dev.Tx([]byte{aht20CmdTrigger, 0x33, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	time.Sleep(aht20MeasureDelay)

	buf := make([]byte, 7)
	for attempt := 0; ; attempt++ {
		if err := d.dev.Tx(nil, buf); err != nil {
			return nil, fmt.Errorf("read measurement: %w", err)
		}
		if buf[0]&aht20StatusBusy == 0 {
			break
		}
		if attempt >= aht20MaxPolls {
			return nil, fmt.Errorf("measurement timed out")
		}
		time.Sleep(aht20PollDelay)
	}

	tempMilliC, rhPerMille := aht20Convert(buf)
	return ClimateSample{
		TempMilliC:       tempMilliC,
		HumidityPerMille: rhPerMille,
		Timestamp:        time.Now(),
	}, nil
}

func (d *AHT20Driver) status() (byte, error) {
	buf := make([]byte, 1)
	if err := d.dev.Tx([]byte{aht20CmdStatus}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// aht20Convert extracts the two 20-bit raw values from a measurement frame
// and converts them: T = raw/2^20*200 - 50 (in milli-C), RH = raw/2^20
// (in per-mille).
func aht20Convert(buf []byte) (tempMilliC, rhPerMille int32) {
	rawH := uint32(buf[1])<<12 | uint32(buf[2])<<4 | uint32(buf[3])>>4
	rawT := uint32(buf[3]&0x0F)<<16 | uint32(buf[4])<<8 | uint32(buf[5])

	tempMilliC = int32(int64(rawT)*200000>>20 - 50000)
	rhPerMille = int32(int64(rawH) * 1000 >> 20)
	return tempMilliC, rhPerMille
}
