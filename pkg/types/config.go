package types

import (
	"errors"
	"fmt"
	"time"
)

// OnBusyPolicy controls what happens when a run trigger arrives while another
// run is still in flight.
type OnBusyPolicy string

const (
	// OnBusyDrop discards the new trigger.
	OnBusyDrop OnBusyPolicy = "drop"
	// OnBusyQueue keeps at most one pending run and executes it once the
	// current run finishes.
	OnBusyQueue OnBusyPolicy = "queue"
)

// Config validation errors.
var (
	errNonPositiveTimeout     = errors.New("timeout must be positive")
	errNegativeRetries        = errors.New("retry count must not be negative")
	errNonPositiveConcurrency = errors.New("concurrency must be positive")
	errUnknownOnBusyPolicy    = errors.New("unknown on-busy policy")
)

// Config is the validated run configuration constructed once at startup and
// passed explicitly into the Runner. Nothing re-reads the environment during
// a run.
type Config struct {
	// AutoUpdate applies updates when a newer image is found; when false,
	// update-available containers are reported but left untouched.
	AutoUpdate bool

	// Cleanup removes images superseded by this run's updates once no
	// container references them.
	Cleanup bool

	// ExcludeNames lists container names excluded from checking (exact match).
	ExcludeNames []string

	// ExcludeImages lists substrings; containers whose image reference
	// contains any of them are excluded from checking.
	ExcludeImages []string

	// StopTimeout is the grace period granted when stopping a container
	// before the engine kills it.
	StopTimeout time.Duration

	// EngineTimeout bounds each individual engine API call.
	EngineTimeout time.Duration

	// RegistryTimeout bounds each individual registry HTTP request.
	RegistryTimeout time.Duration

	// MaxRetries bounds retry attempts for transient registry failures.
	MaxRetries int

	// Concurrency bounds simultaneous registry digest lookups.
	Concurrency int

	// HealthTimeout bounds the wait for a recreated container to report
	// healthy; zero disables the wait.
	HealthTimeout time.Duration

	// OnBusy selects the policy for triggers that arrive mid-run.
	OnBusy OnBusyPolicy
}

// Validate checks the configuration invariants and returns the first
// violation found.
func (c *Config) Validate() error {
	if c.StopTimeout <= 0 {
		return fmt.Errorf("%w: stop-timeout %v", errNonPositiveTimeout, c.StopTimeout)
	}

	if c.EngineTimeout <= 0 {
		return fmt.Errorf("%w: engine-timeout %v", errNonPositiveTimeout, c.EngineTimeout)
	}

	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("%w: registry-timeout %v", errNonPositiveTimeout, c.RegistryTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: %d", errNegativeRetries, c.MaxRetries)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", errNonPositiveConcurrency, c.Concurrency)
	}

	if c.OnBusy != OnBusyDrop && c.OnBusy != OnBusyQueue {
		return fmt.Errorf("%w: %q", errUnknownOnBusyPolicy, c.OnBusy)
	}

	return nil
}
