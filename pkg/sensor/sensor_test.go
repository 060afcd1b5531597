package sensor

import (
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	if Power.String() != "power" {
		t.Fatalf("power kind: got %q", Power.String())
	}
	if Climate.String() != "climate" {
		t.Fatalf("climate kind: got %q", Climate.String())
	}
	if got := Kind(9).String(); got != "kind(9)" {
		t.Fatalf("unknown kind: got %q", got)
	}
}

func TestFieldsAlignWithColumns(t *testing.T) {
	ts := time.Now()
	samples := []Sample{
		PowerSample{BusMillivolts: 12000, CurrentMilliamps: 150, PowerMilliwatts: 1800, Timestamp: ts},
		ClimateSample{TempMilliC: 23500, HumidityPerMille: 450, Timestamp: ts},
	}
	for _, s := range samples {
		cols := Columns(s.Kind())
		if len(cols) == 0 {
			t.Fatalf("no columns for kind %s", s.Kind())
		}
		if len(s.Fields()) != len(cols) {
			t.Fatalf("kind %s: %d fields for %d columns", s.Kind(), len(s.Fields()), len(cols))
		}
		if len(SentinelFields(s.Kind())) != len(cols) {
			t.Fatalf("kind %s: sentinel width mismatch", s.Kind())
		}
	}
}

func TestPowerSampleFields(t *testing.T) {
	s := PowerSample{BusMillivolts: 12000, CurrentMilliamps: -150, PowerMilliwatts: 1800}
	got := s.Fields()
	want := []string{"12000", "-150", "1800"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSentinelFields(t *testing.T) {
	for _, f := range SentinelFields(Climate) {
		if f != "-1" {
			t.Fatalf("sentinel value: got %q", f)
		}
	}
	if got := SentinelFields(Kind(9)); len(got) != 0 {
		t.Fatalf("unknown kind sentinel: got %v", got)
	}
}

func TestSampleStrings(t *testing.T) {
	p := PowerSample{BusMillivolts: 12000, CurrentMilliamps: 150, PowerMilliwatts: 1800}
	if got := p.String(); got != "power: V=12000mV I=150mA P=1800mW" {
		t.Fatalf("power string: got %q", got)
	}
	c := ClimateSample{TempMilliC: 23512, HumidityPerMille: 453}
	if got := c.String(); got != "climate: T=23.512C RH=45.3%" {
		t.Fatalf("climate string: got %q", got)
	}
}
