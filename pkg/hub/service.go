package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/ericogr/sensor-hub/pkg/output"
	"github.com/ericogr/sensor-hub/pkg/sensor"
	"github.com/ericogr/sensor-hub/pkg/storage"
)

// Config holds the service periods. The sample interval drives the poll
// loop; snapshot and persist intervals gate work inside the same loop.
type Config struct {
	SampleInterval   time.Duration
	SnapshotInterval time.Duration
	PersistInterval  time.Duration
	// ErrorLogThrottle logs a failing sensor at streak 1 and then every
	// Nth consecutive failure.
	ErrorLogThrottle uint32
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = time.Second
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 5 * time.Second
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = 10 * time.Second
	}
	if c.ErrorLogThrottle == 0 {
		c.ErrorLogThrottle = 10
	}
	return c
}

// Publication attaches an output published on its own interval from the
// polling loop.
type Publication struct {
	Output   output.Output
	Interval time.Duration
}

// Deps are the service collaborators. Zero values get working defaults,
// except Store: a nil Store disables persistence entirely.
type Deps struct {
	Log          golog.Logger
	Clock        clock.Clock
	Wall         WallClock
	Store        storage.Store
	Publications []Publication
}

type cacheEntry struct {
	kind        sensor.Kind
	sample      sensor.Sample
	valid       bool
	errorStreak uint32
}

type publisher struct {
	out   output.Output
	every time.Duration
	next  time.Time
}

// Service owns the background polling goroutine and the latest-sample
// cache. The cache layout is a snapshot of the registry taken in Run;
// drivers registered afterwards are invisible until the next session.
type Service struct {
	reg   *Registry
	cfg   Config
	log   golog.Logger
	clk   clock.Clock
	wall  WallClock
	store storage.Store
	pubs  []*publisher

	mu    sync.Mutex
	cache []cacheEntry

	running atomic.Bool
	stopReq atomic.Bool
	wake    chan struct{}

	sink         *persister
	nextSnapshot time.Time
}

func NewService(reg *Registry, cfg Config, deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = golog.NewLogger("sensorhub")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Wall == nil {
		deps.Wall = NewSystemWallClock(deps.Clock)
	}
	s := &Service{
		reg:   reg,
		cfg:   cfg.withDefaults(),
		log:   deps.Log,
		clk:   deps.Clock,
		wall:  deps.Wall,
		store: deps.Store,
	}
	for _, p := range deps.Publications {
		if p.Output == nil {
			continue
		}
		every := p.Interval
		if every <= 0 {
			every = s.cfg.SnapshotInterval
		}
		s.pubs = append(s.pubs, &publisher{out: p.Output, every: every})
	}
	return s
}

// Run starts the polling goroutine. Idempotent: a second call while running
// returns nil without side effects. Any driver init failure or an
// unavailable wall clock aborts the start and leaves the service stopped.
// The wake channel and stop flag are set up under the lock before running
// flips, so a Stop arriving mid-startup is honored instead of closing a nil
// channel or being swallowed by a stale stop flag.
func (s *Service) Run() error {
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		s.log.Info("sensor service already running")
		return nil
	}
	s.stopReq.Store(false)
	s.wake = make(chan struct{})
	s.running.Store(true)
	s.mu.Unlock()

	if err := s.reg.InitAll(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("init sensors: %w", err)
	}
	if err := s.rebuildCache(); err != nil {
		s.running.Store(false)
		return err
	}

	if s.store != nil {
		sink, err := newPersister(s.store, s.wall, s.cfg.PersistInterval, s.reg.Kinds(), s.clk.Now(), s.log)
		if err != nil {
			s.running.Store(false)
			return fmt.Errorf("start persistence: %w", err)
		}
		s.sink = sink
	} else {
		s.sink = nil
	}

	now := s.clk.Now()
	s.nextSnapshot = now.Add(s.cfg.SnapshotInterval)
	for _, p := range s.pubs {
		p.next = now.Add(p.every)
	}

	go s.loop()
	return nil
}

// Stop requests the polling goroutine to exit and wakes it if it is
// sleeping. It does not block waiting for the exit; latency is bounded by
// one in-flight driver read plus one persistence write. A Stop during Run's
// startup sequence makes the loop exit before its first poll.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	if s.stopReq.CompareAndSwap(false, true) {
		close(s.wake)
	}
}

// Latest copies the most recent valid sample for kind out of the cache.
func (s *Service) Latest(kind sensor.Kind) (sensor.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cache {
		if s.cache[i].kind != kind {
			continue
		}
		if !s.cache[i].valid {
			return nil, fmt.Errorf("%w: %s", ErrNotReady, kind)
		}
		return s.cache[i].sample, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, kind)
}

// LatestPower is a typed convenience accessor for the power monitor.
func (s *Service) LatestPower() (sensor.PowerSample, error) {
	smp, err := s.Latest(sensor.Power)
	if err != nil {
		return sensor.PowerSample{}, err
	}
	v, ok := smp.(sensor.PowerSample)
	if !ok {
		return sensor.PowerSample{}, fmt.Errorf("%w: %s", ErrKindMismatch, sensor.Power)
	}
	return v, nil
}

// LatestClimate is a typed convenience accessor for the climate sensor.
func (s *Service) LatestClimate() (sensor.ClimateSample, error) {
	smp, err := s.Latest(sensor.Climate)
	if err != nil {
		return sensor.ClimateSample{}, err
	}
	v, ok := smp.(sensor.ClimateSample)
	if !ok {
		return sensor.ClimateSample{}, fmt.Errorf("%w: %s", ErrKindMismatch, sensor.Climate)
	}
	return v, nil
}

// rebuildCache snapshots the registry enumeration into a fresh cache.
func (s *Service) rebuildCache() error {
	count := s.reg.Count()
	if count > MaxDrivers {
		return fmt.Errorf("%w: %d drivers", ErrCapacity, count)
	}
	cache := make([]cacheEntry, count)
	for i := 0; i < count; i++ {
		kind, err := s.reg.KindAt(i)
		if err != nil {
			return fmt.Errorf("build cache layout: %w", err)
		}
		cache[i] = cacheEntry{kind: kind}
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	return nil
}

func (s *Service) loop() {
	s.log.Info("sensor service started")
	ticker := s.clk.Ticker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for !s.stopReq.Load() {
		s.pollOnce()
		now := s.clk.Now()
		s.maybeSnapshot(now)
		s.maybePublish(now)
		if s.sink != nil {
			s.sink.maybePersist(now, s.latestByKind())
		}
		select {
		case <-s.wake:
		case <-ticker.C:
		}
	}

	s.running.Store(false)
	s.log.Info("sensor service stopped")
}

// pollOnce samples every cached kind. A failure never touches the last
// good value; it only bumps the entry's error streak.
func (s *Service) pollOnce() {
	for i := range s.cache {
		e := &s.cache[i]
		smp, err := s.reg.Read(e.kind)
		if err != nil {
			e.errorStreak++
			if shouldLogStreak(e.errorStreak, s.cfg.ErrorLogThrottle) {
				s.log.Errorf("sensor sample failed kind=%s streak=%d: %v", e.kind, e.errorStreak, err)
			}
			continue
		}
		e.errorStreak = 0
		s.mu.Lock()
		e.sample = smp
		e.valid = true
		s.mu.Unlock()
	}
}

// shouldLogStreak throttles diagnostics for a persistently failing sensor:
// log the first failure, then every throttle-th consecutive one.
func shouldLogStreak(streak, throttle uint32) bool {
	return streak == 1 || (throttle > 0 && streak%throttle == 0)
}

func (s *Service) maybeSnapshot(now time.Time) {
	if now.Before(s.nextSnapshot) {
		return
	}
	s.nextSnapshot = now.Add(s.cfg.SnapshotInterval)

	samples := s.latestValid()
	if len(samples) == 0 {
		s.log.Info("[sensor] waiting for first valid samples")
		return
	}
	for _, smp := range samples {
		s.log.Infof("[sensor] %s", smp.String())
	}
}

func (s *Service) maybePublish(now time.Time) {
	for _, p := range s.pubs {
		if now.Before(p.next) {
			continue
		}
		p.next = now.Add(p.every)
		samples := s.latestValid()
		if len(samples) == 0 {
			continue
		}
		if err := p.out.Publish(samples); err != nil {
			s.log.Errorf("output publish failed: %v", err)
		}
	}
}

// latestValid copies the valid samples out of the cache in layout order.
func (s *Service) latestValid() []sensor.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sensor.Sample, 0, len(s.cache))
	for i := range s.cache {
		if s.cache[i].valid {
			out = append(out, s.cache[i].sample)
		}
	}
	return out
}

func (s *Service) latestByKind() map[sensor.Kind]sensor.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[sensor.Kind]sensor.Sample, len(s.cache))
	for i := range s.cache {
		if s.cache[i].valid {
			out[s.cache[i].kind] = s.cache[i].sample
		}
	}
	return out
}
