package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/status"
)

// DefaultFixedUpdateHz is the fixed-timestep frequency used when the
// config leaves it unset
const DefaultFixedUpdateHz = 60.0

// Config enumerates the world construction options
type Config struct {
	// Debug enables internal consistency assertions and debug-level
	// logging of registrations and tick phases
	Debug bool

	// FixedUpdateHz is the frequency of fixed-timestep systems,
	// converted internally to a step duration. Zero selects
	// DefaultFixedUpdateHz.
	FixedUpdateHz float64

	// EnableProxyTracking toggles whether reactive component wrappers
	// can be constructed
	EnableProxyTracking bool

	// Logger receives engine logs. Nil means no logging.
	Logger *zap.Logger

	// Clock drives profiling measurements. Nil selects the monotonic
	// system clock.
	Clock TimeProvider

	// Status, when set, receives aggregate and per-system metrics at
	// the end of every update
	Status *status.Registry
}

func (c Config) withDefaults() Config {
	if c.FixedUpdateHz <= 0 {
		c.FixedUpdateHz = DefaultFixedUpdateHz
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = NewMonotonicTimeProvider()
	}
	return c
}

// fixedStep converts the configured frequency to the accumulator step
func (c Config) fixedStep() time.Duration {
	return time.Duration(float64(time.Second) / c.FixedUpdateHz)
}
