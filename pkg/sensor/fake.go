package sensor

import (
	"math/rand"
	"sync"
	"time"
)

// FakePowerDriver simulates an INA226 around a 12V/150mA operating point.
type FakePowerDriver struct {
	mu sync.Mutex
}

func NewFakePower() Driver { return &FakePowerDriver{} }

func (f *FakePowerDriver) Kind() Kind   { return Power }
func (f *FakePowerDriver) Init() error  { return nil }
func (f *FakePowerDriver) Close() error { return nil }

func (f *FakePowerDriver) Read() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bus := int32(12000 + rand.Intn(200) - 100)
	cur := int32(150 + rand.Intn(20) - 10)
	return PowerSample{
		BusMillivolts:    bus,
		CurrentMilliamps: cur,
		PowerMilliwatts:  bus * cur / 1000,
		Timestamp:        time.Now(),
	}, nil
}

// FakeClimateDriver simulates an AHT20 around 23.5C / 45%RH.
type FakeClimateDriver struct {
	mu sync.Mutex
}

func NewFakeClimate() Driver { return &FakeClimateDriver{} }

func (f *FakeClimateDriver) Kind() Kind   { return Climate }
func (f *FakeClimateDriver) Init() error  { return nil }
func (f *FakeClimateDriver) Close() error { return nil }

func (f *FakeClimateDriver) Read() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ClimateSample{
		TempMilliC:       int32(23500 + rand.Intn(1000) - 500),
		HumidityPerMille: int32(450 + rand.Intn(60) - 30),
		Timestamp:        time.Now(),
	}, nil
}
