package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/ericogr/sensor-hub/pkg/sensor"
)

type stubSample struct {
	kind sensor.Kind
	ts   time.Time
}

func (s stubSample) Kind() sensor.Kind { return s.kind }
func (s stubSample) Time() time.Time   { return s.ts }
func (s stubSample) Fields() []string  { return nil }
func (s stubSample) String() string    { return "stub " + s.kind.String() }

type stubDriver struct {
	kind      sensor.Kind
	initErr   error
	initDelay time.Duration
	readErr   error
	sample    sensor.Sample
	initCalls int
	readCalls int
}

func (d *stubDriver) Kind() sensor.Kind { return d.kind }
func (d *stubDriver) Close() error      { return nil }

func (d *stubDriver) Init() error {
	d.initCalls++
	if d.initDelay > 0 {
		time.Sleep(d.initDelay)
	}
	return d.initErr
}

func (d *stubDriver) Read() (sensor.Sample, error) {
	d.readCalls++
	if d.readErr != nil {
		return nil, d.readErr
	}
	if d.sample != nil {
		return d.sample, nil
	}
	return stubSample{kind: d.kind}, nil
}

func TestRegisterDuplicateKind(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&stubDriver{kind: sensor.Power}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := reg.Register(&stubDriver{kind: sensor.Power})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate register: got %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("count after duplicate: got %d want 1", reg.Count())
	}
}

func TestRegisterCapacity(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < MaxDrivers; i++ {
		if err := reg.Register(&stubDriver{kind: sensor.Kind(i)}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	err := reg.Register(&stubDriver{kind: sensor.Kind(MaxDrivers)})
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("overflow register: got %v", err)
	}
	if reg.Count() != MaxDrivers {
		t.Fatalf("count after overflow: got %d", reg.Count())
	}
}

func TestEnumeration(t *testing.T) {
	reg := NewRegistry()
	kinds := []sensor.Kind{sensor.Climate, sensor.Power, sensor.Kind(5)}
	for _, k := range kinds {
		if err := reg.Register(&stubDriver{kind: k}); err != nil {
			t.Fatalf("register %s: %v", k, err)
		}
	}
	if reg.Count() != len(kinds) {
		t.Fatalf("count: got %d want %d", reg.Count(), len(kinds))
	}
	for i, want := range kinds {
		got, err := reg.KindAt(i)
		if err != nil {
			t.Fatalf("KindAt(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("KindAt(%d): got %s want %s", i, got, want)
		}
	}
	if _, err := reg.KindAt(len(kinds)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("KindAt past end: got %v", err)
	}
	if _, err := reg.KindAt(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("KindAt(-1): got %v", err)
	}
}

func TestInitAllStopsAtFirstFailure(t *testing.T) {
	reg := NewRegistry()
	d0 := &stubDriver{kind: sensor.Kind(0)}
	d1 := &stubDriver{kind: sensor.Kind(1), initErr: errors.New("no device")}
	d2 := &stubDriver{kind: sensor.Kind(2)}
	for _, d := range []*stubDriver{d0, d1, d2} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	if err := reg.InitAll(); err == nil {
		t.Fatalf("expected init failure")
	}
	if d0.initCalls != 1 || d2.initCalls != 0 {
		t.Fatalf("init order: d0=%d d2=%d", d0.initCalls, d2.initCalls)
	}

	// already-initialized slots stay initialized across retries
	d1.initErr = nil
	if err := reg.InitAll(); err != nil {
		t.Fatalf("second InitAll: %v", err)
	}
	if d0.initCalls != 1 {
		t.Fatalf("d0 re-initialized: %d calls", d0.initCalls)
	}
	if d1.initCalls != 2 || d2.initCalls != 1 {
		t.Fatalf("remaining inits: d1=%d d2=%d", d1.initCalls, d2.initCalls)
	}
}

func TestReadLazyInit(t *testing.T) {
	reg := NewRegistry()
	d := &stubDriver{kind: sensor.Power}
	if err := reg.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Read(sensor.Power); err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.initCalls != 1 {
		t.Fatalf("lazy init calls: got %d want 1", d.initCalls)
	}
	if _, err := reg.Read(sensor.Power); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if d.initCalls != 1 {
		t.Fatalf("init repeated after success: %d calls", d.initCalls)
	}
}

func TestReadErrors(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Read(sensor.Power); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read unregistered: got %v", err)
	}

	boom := errors.New("bus fault")
	d := &stubDriver{kind: sensor.Power, readErr: boom}
	if err := reg.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Read(sensor.Power); !errors.Is(err, boom) {
		t.Fatalf("driver error not propagated: got %v", err)
	}
}

func TestReadKindMismatch(t *testing.T) {
	reg := NewRegistry()
	d := &stubDriver{kind: sensor.Power, sample: stubSample{kind: sensor.Climate}}
	if err := reg.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Read(sensor.Power); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("kind mismatch: got %v", err)
	}
}
