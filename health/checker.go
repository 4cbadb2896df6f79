package health

import (
	"context"
	"time"
)

// Status grades a probed subsystem. The cache engine distinguishes a
// store that answers slowly or leaks index postings (degraded) from one
// that fails its round trip outright (unhealthy).
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

// String returns the wire form of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Result is one probe's verdict. Details carries probe-specific state:
// the store probe reports entry and byte counts, the index probe the
// number of dangling postings, the memory probe heap figures.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy builds a passing result stamped now.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a result for a subsystem that still serves but needs
// attention.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds a failing result carrying its cause.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails attaches probe-specific state to the result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one subsystem of the cache engine. Implementations must
// honor ctx: a probe against a wedged store has to return when the
// aggregator's deadline fires.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a plain function into a named Checker, for probes
// too small to deserve a type of their own.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result {
	if f.fn == nil {
		return Unhealthy("checker has no probe function", ErrCheckFailed)
	}
	return f.fn(ctx)
}

// Ensure CheckerFunc implements Checker
var _ Checker = (*CheckerFunc)(nil)
