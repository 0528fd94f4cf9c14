package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/logging"
)

type Config struct {
	AggregateName string
	OutputDevice  string
	CaptureDevice string
}

func (c Config) withDefaults() Config {
	if c.AggregateName == "" {
		c.AggregateName = "bellhop-call-tap"
	}
	return c
}

// Manager creates and destroys the virtual audio route. It has no call
// awareness: the orchestrator owns the ordering guarantee that Setup
// completes before any dial or answer is issued.
type Manager struct {
	cfg    Config
	ctrl   DeviceController
	logger *slog.Logger
}

func NewManager(ctrl DeviceController, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg.withDefaults(),
		ctrl:   ctrl,
		logger: logging.NewComponentLogger(logger, "route"),
	}
}

// Setup records the current default output, creates the aggregate device and
// switches the default output onto it, then verifies the switch took hold.
// The call application latches its output device at connect time, so a
// route that cannot be verified here means the call must not be placed.
func (m *Manager) Setup(ctx context.Context) (*Route, error) {
	prior, err := m.ctrl.DefaultOutput(ctx)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("query default output: %w", err), errorsx.ReasonRoutingSetup)
	}

	subdevices := []string{m.cfg.OutputDevice, m.cfg.CaptureDevice}
	aggID, err := m.ctrl.CreateAggregate(ctx, m.cfg.AggregateName, subdevices)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("create aggregate: %w", err), errorsx.ReasonRoutingSetup)
	}

	if err := m.ctrl.SetDefaultOutput(ctx, aggID); err != nil {
		if derr := m.ctrl.DestroyAggregate(ctx, aggID); derr != nil {
			m.logger.Warn("aggregate_cleanup_failed", "aggregate_id", aggID, "error", derr.Error())
		}
		return nil, errorsx.Wrap(fmt.Errorf("set default output: %w", err), errorsx.ReasonRoutingSetup)
	}

	current, err := m.ctrl.DefaultOutput(ctx)
	if err != nil || current != aggID {
		r := &Route{AggregateID: aggID, PriorDefault: prior}
		if terr := m.Teardown(ctx, r); terr != nil {
			m.logger.Warn("route_rollback_failed", "error", terr.Error())
		}
		if err == nil {
			err = fmt.Errorf("default output is %q, want %q", current, aggID)
		}
		return nil, errorsx.Wrap(fmt.Errorf("verify route: %w", err), errorsx.ReasonRoutingNotReady)
	}

	m.logger.Info("route_established",
		"aggregate_id", aggID,
		"prior_default", prior)
	return &Route{AggregateID: aggID, PriorDefault: prior}, nil
}

// Teardown restores the prior default output and destroys the aggregate
// device. It is idempotent and unconditional: each step is best-effort and
// a failing restore never skips the destroy. Calling it with a nil or
// already-released route is a safe no-op.
func (m *Manager) Teardown(ctx context.Context, r *Route) error {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if r.PriorDefault != "" {
		if err := m.ctrl.SetDefaultOutput(ctx, r.PriorDefault); err != nil {
			m.logger.Error("restore_default_failed", "device", r.PriorDefault, "error", err.Error())
			errs = append(errs, errorsx.Wrap(fmt.Errorf("restore default output: %w", err), errorsx.ReasonRoutingRestore))
		}
	}
	if r.AggregateID != "" {
		if err := m.ctrl.DestroyAggregate(ctx, r.AggregateID); err != nil {
			m.logger.Error("destroy_aggregate_failed", "aggregate_id", r.AggregateID, "error", err.Error())
			errs = append(errs, errorsx.Wrap(fmt.Errorf("destroy aggregate: %w", err), errorsx.ReasonRoutingRestore))
		}
	}
	if len(errs) == 0 {
		m.logger.Info("route_released", "aggregate_id", r.AggregateID)
		return nil
	}
	return errors.Join(errs...)
}

// WithRoute runs fn under an established route with guaranteed release.
// Teardown runs whether fn returns, fails, or panics.
func (m *Manager) WithRoute(ctx context.Context, fn func(*Route) error) error {
	r, err := m.Setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if terr := m.Teardown(context.WithoutCancel(ctx), r); terr != nil {
			m.logger.Error("route_teardown_error", "error", terr.Error())
		}
	}()
	return fn(r)
}
