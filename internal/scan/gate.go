package scan

import (
	"fmt"
	"time"

	"github.com/limelightai/limelight/internal/config"
)

// Gate decides whether "today's" daily run is allowed to start. The day
// boundary is computed once, in the tenant-facing timezone, so schedulers
// invoking from UTC (or anywhere else) agree on the same day key.
type Gate struct {
	loc       *time.Location
	startHour int
}

// NewGate creates a Gate from scheduler configuration.
// Parameters:
//   - cfg: scheduler configuration with timezone and start hour.
// Returns:
//   - *Gate: initialized gate.
//   - error: non-nil if the timezone cannot be loaded.
func NewGate(cfg *config.SchedulerConfig) (*Gate, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}
	return &Gate{loc: loc, startHour: cfg.StartHour}, nil
}

// DayKey returns the timezone-normalized calendar-day identifier for now,
// formatted YYYY-MM-DD.
func (g *Gate) DayKey(now time.Time) string {
	return now.In(g.loc).Format("2006-01-02")
}

// WindowOpen reports whether the daily window has opened for now's day:
// true once the configured local wall-clock hour has passed. Cheap and
// side-effect free; external schedulers may poll it every few minutes.
func (g *Gate) WindowOpen(now time.Time) bool {
	return now.In(g.loc).Hour() >= g.startHour
}

// Location returns the gate's timezone.
func (g *Gate) Location() *time.Location {
	return g.loc
}
