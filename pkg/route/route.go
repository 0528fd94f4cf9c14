package route

import (
	"context"
	"sync/atomic"
)

// Route is the live audio routing state for one call: the virtual aggregate
// device carrying call audio to both the physical output and the capture
// tap, and the default output that was active before setup so teardown can
// restore it.
type Route struct {
	AggregateID  string
	PriorDefault string

	released atomic.Bool
}

// Established reports whether the route still holds the system default
// output. It turns false permanently once the route is torn down.
func (r *Route) Established() bool {
	return r != nil && !r.released.Load()
}

// DeviceController abstracts the audio-device tool that performs the actual
// routing trick. Implementations are an external subprocess in production
// and a fake in tests.
type DeviceController interface {
	// DefaultOutput returns the identifier of the current system default
	// output device.
	DefaultOutput(ctx context.Context) (string, error)
	// SetDefaultOutput switches the system default output.
	SetDefaultOutput(ctx context.Context, device string) error
	// CreateAggregate builds a virtual multi-output device from the given
	// subdevices and returns its identifier.
	CreateAggregate(ctx context.Context, name string, subdevices []string) (string, error)
	// DestroyAggregate removes a previously created aggregate device.
	DestroyAggregate(ctx context.Context, id string) error
}
