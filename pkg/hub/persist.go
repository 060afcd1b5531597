package hub

import (
	"fmt"
	"strings"
	"time"

	"github.com/edaniels/golog"

	"github.com/ericogr/sensor-hub/pkg/sensor"
	"github.com/ericogr/sensor-hub/pkg/storage"
)

const (
	sessionFileSuffix  = "_sensor.csv"
	sessionFileTimeFmt = "20060102_150405"
	rowTimeFmt         = "2006-01-02 15:04:05"
)

// persister appends a joined row of the latest samples to one CSV file per
// session. It is driven synchronously from the polling loop on its own
// period and fail-stops: the first write failure disables it for the rest
// of the session, so a flaky storage device is never hammered from a tight
// loop while acquisition keeps running.
type persister struct {
	store storage.Store
	wall  WallClock
	log   golog.Logger
	path  string
	kinds []sensor.Kind
	every time.Duration
	next  time.Time

	enabled       bool
	headerWritten bool
}

// newPersister computes the session file name from the wall clock. A clock
// failure here is a startup precondition failure, not a retryable fault.
func newPersister(store storage.Store, wall WallClock, every time.Duration, kinds []sensor.Kind, startedAt time.Time, log golog.Logger) (*persister, error) {
	now, err := wall.Now()
	if err != nil {
		return nil, fmt.Errorf("wall clock: %w", err)
	}
	return &persister{
		store:   store,
		wall:    wall,
		log:     log,
		path:    now.Format(sessionFileTimeFmt) + sessionFileSuffix,
		kinds:   kinds,
		every:   every,
		next:    startedAt.Add(every),
		enabled: true,
	}, nil
}

// maybePersist appends one row once the persistence period has elapsed.
// latest maps kinds to their last valid sample; kinds absent from the map
// are written as -1 sentinels so the column count never varies.
func (p *persister) maybePersist(now time.Time, latest map[sensor.Kind]sensor.Sample) {
	if !p.enabled || now.Before(p.next) {
		return
	}
	p.next = now.Add(p.every)

	if len(latest) == 0 {
		return
	}

	if !p.headerWritten {
		if err := p.store.Write(p.path, []byte(p.header()+"\n"), true); err != nil {
			p.enabled = false
			p.log.Errorf("persist header write failed, disabling persistence for this session: %v", err)
			return
		}
		p.headerWritten = true
	}

	ts, err := p.wall.Now()
	if err != nil {
		// Not a storage fault: skip this tick only.
		p.log.Debugf("persist skipped, wall clock unavailable: %v", err)
		return
	}

	row := p.row(ts, latest)
	if err := p.store.Write(p.path, []byte(row+"\n"), true); err != nil {
		p.enabled = false
		p.log.Errorf("persist row write failed, disabling persistence for this session: %v", err)
	}
}

func (p *persister) header() string {
	cols := []string{"timestamp"}
	for _, k := range p.kinds {
		cols = append(cols, sensor.Columns(k)...)
	}
	return strings.Join(cols, ",")
}

func (p *persister) row(ts time.Time, latest map[sensor.Kind]sensor.Sample) string {
	fields := []string{ts.Format(rowTimeFmt)}
	for _, k := range p.kinds {
		if smp, ok := latest[k]; ok {
			fields = append(fields, smp.Fields()...)
		} else {
			fields = append(fields, sensor.SentinelFields(k)...)
		}
	}
	return strings.Join(fields, ",")
}
