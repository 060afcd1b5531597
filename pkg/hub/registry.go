// Package hub contains the sensor acquisition core: a bounded driver
// registry, a polling service with a latest-sample cache, and a CSV
// persistence sink with fail-stop semantics.
package hub

import (
	"fmt"

	"github.com/ericogr/sensor-hub/pkg/sensor"
)

// MaxDrivers bounds the registry's slot table.
const MaxDrivers = 8

type driverSlot struct {
	driver      sensor.Driver
	initialized bool
}

// Registry maps sensor kinds to drivers, one driver per kind. It is meant
// to be populated during bring-up, before the acquisition service starts;
// it carries no lock of its own. After start the only mutation is the lazy
// per-kind init, which happens from the single polling goroutine.
type Registry struct {
	slots [MaxDrivers]driverSlot
	count int
}

func NewRegistry() *Registry { return &Registry{} }

// Register adds a driver. It has no side effects on failure.
func (r *Registry) Register(d sensor.Driver) error {
	if d == nil {
		return fmt.Errorf("nil driver")
	}
	if r.find(d.Kind()) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, d.Kind())
	}
	if r.count >= MaxDrivers {
		return fmt.Errorf("%w: max %d", ErrCapacity, MaxDrivers)
	}
	r.slots[r.count] = driverSlot{driver: d}
	r.count++
	return nil
}

// Count returns the number of registered drivers.
func (r *Registry) Count() int { return r.count }

// KindAt returns the kind registered at index i, in registration order.
func (r *Registry) KindAt(i int) (sensor.Kind, error) {
	if i < 0 || i >= r.count {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return r.slots[i].driver.Kind(), nil
}

// Kinds returns all registered kinds in registration order.
func (r *Registry) Kinds() []sensor.Kind {
	out := make([]sensor.Kind, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.slots[i].driver.Kind()
	}
	return out
}

// InitAll initializes every not-yet-initialized driver in registration
// order and stops at the first failure. Slots initialized before the
// failure stay initialized.
func (r *Registry) InitAll() error {
	for i := 0; i < r.count; i++ {
		if r.slots[i].initialized {
			continue
		}
		if err := r.slots[i].driver.Init(); err != nil {
			return fmt.Errorf("init %s: %w", r.slots[i].driver.Kind(), err)
		}
		r.slots[i].initialized = true
	}
	return nil
}

// Init lazily initializes the driver for one kind. Idempotent.
func (r *Registry) Init(kind sensor.Kind) error {
	idx := r.find(kind)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	if r.slots[idx].initialized {
		return nil
	}
	if err := r.slots[idx].driver.Init(); err != nil {
		return err
	}
	r.slots[idx].initialized = true
	return nil
}

// Read samples one kind. This is the single choke point all sampling flows
// through: it locates the driver, lazily initializes it and verifies the
// returned sample carries the declared kind, so driver faults are contained
// here rather than duplicated per caller.
func (r *Registry) Read(kind sensor.Kind) (sensor.Sample, error) {
	idx := r.find(kind)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	if err := r.Init(kind); err != nil {
		return nil, err
	}
	s, err := r.slots[idx].driver.Read()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Kind() != kind {
		return nil, fmt.Errorf("%w: want %s", ErrKindMismatch, kind)
	}
	return s, nil
}

func (r *Registry) find(kind sensor.Kind) int {
	for i := 0; i < r.count; i++ {
		if r.slots[i].driver.Kind() == kind {
			return i
		}
	}
	return -1
}
