package session

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Launcher starts interview sessions on demand and exposes the registry
// operations the HTTP surface needs.
type Launcher struct {
	registry *Registry
	deps     Deps
	log      logrus.FieldLogger
}

func NewLauncher(registry *Registry, deps Deps, log logrus.FieldLogger) *Launcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Launcher{registry: registry, deps: deps, log: log}
}

// Start registers a new session for the request and runs it in the
// background. The call ID is claimed before any resource is acquired;
// ErrCallActive means a session for this call is already live.
func (l *Launcher) Start(req Request) error {
	ctrl := NewController(req, l.deps)
	if err := l.registry.Register(req.CallID, ctrl); err != nil {
		return err
	}

	go func() {
		defer l.registry.release(req.CallID, ctrl)
		if err := ctrl.Run(); err != nil {
			l.log.WithError(err).WithField("call_id", req.CallID).Error("interview session failed")
		}
	}()

	return nil
}

func (l *Launcher) ShutdownOne(ctx context.Context, callID string) error {
	return l.registry.ShutdownOne(ctx, callID)
}

// ShutdownAll stops every live session, typically on process shutdown.
func (l *Launcher) ShutdownAll(ctx context.Context) int {
	return l.registry.ShutdownAll(ctx)
}

func (l *Launcher) Statuses() []Status {
	return l.registry.Statuses()
}

func (l *Launcher) Count() int {
	return l.registry.Count()
}
