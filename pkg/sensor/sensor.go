// Package sensor defines the sensor kinds known to the hub, their typed
// samples and the driver contract a backend must satisfy to be registered.
package sensor

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies a sensor type. The set of kinds is closed: every kind has
// exactly one sample struct in this package and a fixed CSV column set.
type Kind uint8

const (
	// Power is a bus power monitor (INA226): voltage, current, power.
	Power Kind = iota
	// Climate is a temperature/humidity sensor (AHT20).
	Climate
)

func (k Kind) String() string {
	switch k {
	case Power:
		return "power"
	case Climate:
		return "climate"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Sample is one reading produced by a driver. Implementations are the
// kind-specific structs in this package; the registry rejects samples whose
// Kind does not match the driver that produced them.
type Sample interface {
	Kind() Kind
	// Time is the capture timestamp.
	Time() time.Time
	// Fields returns the CSV values for this sample, aligned with Columns(Kind()).
	Fields() []string
	String() string
}

// Driver is a sensor backend. Init must be idempotent; Read returns one
// sample of the driver's declared kind.
type Driver interface {
	Kind() Kind
	Init() error
	Read() (Sample, error)
	Close() error
}

// PowerSample holds one reading of the power monitor in engineering units.
type PowerSample struct {
	BusMillivolts    int32
	CurrentMilliamps int32
	PowerMilliwatts  int32
	Timestamp        time.Time
}

func (PowerSample) Kind() Kind        { return Power }
func (s PowerSample) Time() time.Time { return s.Timestamp }

func (s PowerSample) Fields() []string {
	return []string{
		strconv.FormatInt(int64(s.BusMillivolts), 10),
		strconv.FormatInt(int64(s.CurrentMilliamps), 10),
		strconv.FormatInt(int64(s.PowerMilliwatts), 10),
	}
}

func (s PowerSample) String() string {
	return fmt.Sprintf("power: V=%dmV I=%dmA P=%dmW",
		s.BusMillivolts, s.CurrentMilliamps, s.PowerMilliwatts)
}

// ClimateSample holds one temperature/humidity reading.
type ClimateSample struct {
	TempMilliC       int32
	HumidityPerMille int32
	Timestamp        time.Time
}

func (ClimateSample) Kind() Kind        { return Climate }
func (s ClimateSample) Time() time.Time { return s.Timestamp }

func (s ClimateSample) Fields() []string {
	return []string{
		strconv.FormatInt(int64(s.TempMilliC), 10),
		strconv.FormatInt(int64(s.HumidityPerMille), 10),
	}
}

func (s ClimateSample) String() string {
	return fmt.Sprintf("climate: T=%.3fC RH=%.1f%%",
		float64(s.TempMilliC)/1000, float64(s.HumidityPerMille)/10)
}

// Columns returns the CSV column names contributed by a kind, in the same
// order as the corresponding Sample.Fields. Unknown kinds have no columns.
func Columns(k Kind) []string {
	switch k {
	case Power:
		return []string{"power_bus_mv", "power_current_ma", "power_power_mw"}
	case Climate:
		return []string{"climate_temp_mc", "climate_rh_permille"}
	default:
		return nil
	}
}

// SentinelFields returns the placeholder values written when a kind has no
// valid sample yet. The sentinel is ambiguous for channels whose legitimate
// range includes -1 (bus current can be negative); consumers cannot
// distinguish "never reported" from a genuine -1 reading.
func SentinelFields(k Kind) []string {
	cols := Columns(k)
	out := make([]string, len(cols))
	for i := range out {
		out[i] = "-1"
	}
	return out
}
