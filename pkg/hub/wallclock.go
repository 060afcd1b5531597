package hub

import (
	"time"

	"github.com/benbjohnson/clock"
)

// WallClock reads calendar time. It is fallible to model clock sources
// that may not be synchronized yet (RTC, NTP); the persistence sink treats
// a failure at session start as fatal and a failure mid-session as a
// skipped tick.
type WallClock interface {
	Now() (time.Time, error)
}

type systemWallClock struct {
	clk clock.Clock
}

// NewSystemWallClock returns a WallClock backed by clk that never fails.
func NewSystemWallClock(clk clock.Clock) WallClock {
	return &systemWallClock{clk: clk}
}

func (w *systemWallClock) Now() (time.Time, error) {
	return w.clk.Now(), nil
}
