package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in
// reverse.
type Runtime struct {
	components []Component
	started    []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{logger: log.WithField("service", "runtime")}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start starts every component. When one fails the already started ones
// are stopped and the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	r.started = make([]Component, 0, len(r.components))
	for _, component := range r.components {
		if err := component.Start(ctx); err != nil {
			_ = r.stop(ctx)
			return fmt.Errorf("start %T: %w", component, err)
		}
		r.logger.WithField("component", fmt.Sprintf("%T", component)).Debug("started")
		r.started = append(r.started, component)
	}
	return nil
}

// Stop stops the started components, collecting every error.
func (r *Runtime) Stop(ctx context.Context) error {
	return r.stop(ctx)
}

func (r *Runtime) stop(ctx context.Context) error {
	var stopErr error
	for i := len(r.started) - 1; i >= 0; i-- {
		component := r.started[i]
		if err := component.Stop(ctx); err != nil {
			r.logger.WithError(err).WithField("component", fmt.Sprintf("%T", component)).Error("failed to stop")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %T: %w", component, err))
		}
	}
	r.started = nil
	return stopErr
}

// Func adapts a pair of functions to a Component. Either may be nil.
type Func struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}
